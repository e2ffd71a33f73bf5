// Package health reports whether the paths a long-running build depends on
// are still usable. Checks run concurrently and the worst status wins.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is the health of one check or of the whole report.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes one dependency.
type Check func(ctx context.Context) Result

// Result is the outcome of a single Check.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report aggregates every registered check.
type Report struct {
	Status    Status            `json:"status"`
	Checks    map[string]Result `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Checker holds named checks. The zero value is not usable; call NewChecker.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all checks concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status:    StatusUp,
		Checks:    make(map[string]Result, len(checks)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := check(ctx)
			res.Latency = time.Since(start).Round(time.Microsecond).String()
			mu.Lock()
			report.Checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, res := range report.Checks {
		switch res.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// Handler serves the report as JSON, with 503 unless every check is up.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUp {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}

// DirWritable checks that dir exists and a file can be created in it.
func DirWritable(dir string) Check {
	return func(ctx context.Context) Result {
		info, err := os.Stat(dir)
		if err != nil {
			return down(err)
		}
		if !info.IsDir() {
			return Result{Status: StatusDown, Message: fmt.Sprintf("%s is not a directory", dir)}
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return down(err)
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		return Result{Status: StatusUp}
	}
}

// FileReadable checks that path is a regular file that can be opened.
// A file that exists but is empty is reported as degraded.
func FileReadable(path string) Check {
	return func(ctx context.Context) Result {
		f, err := os.Open(path)
		if err != nil {
			return down(err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return down(err)
		}
		if !info.Mode().IsRegular() {
			return Result{Status: StatusDown, Message: fmt.Sprintf("%s is not a regular file", filepath.Base(path))}
		}
		if info.Size() == 0 {
			return Result{Status: StatusDegraded, Message: "empty file"}
		}
		return Result{Status: StatusUp}
	}
}

func down(err error) Result {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return Result{Status: StatusDown, Message: pe.Op + ": " + pe.Err.Error()}
	}
	return Result{Status: StatusDown, Message: err.Error()}
}
