// Package disposable identifies domains of throwaway mailbox providers.
package disposable

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

//go:embed domains.txt
var defaultList string

// Checker is a case-insensitive set of disposable domains. A domain also
// matches when any of its parent domains is listed.
type Checker struct {
	mu      sync.RWMutex
	domains map[string]struct{}
}

// New returns an empty checker.
func New() *Checker {
	return &Checker{domains: make(map[string]struct{})}
}

// NewDefault returns a checker seeded with the embedded provider list.
func NewDefault() *Checker {
	c := New()
	// the embedded list is static, a read error here is a build defect
	if err := c.Load(strings.NewReader(defaultList)); err != nil {
		panic(fmt.Sprintf("disposable: embedded list: %v", err))
	}
	return c
}

// Add registers domains. Blank entries are ignored.
func (c *Checker) Add(domains ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range domains {
		if d = normalize(d); d != "" {
			c.domains[d] = struct{}{}
		}
	}
}

// Load reads one domain per line. Blank lines and lines starting with '#'
// are skipped.
func (c *Checker) Load(r io.Reader) error {
	var domains []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read disposable domains: %w", err)
	}

	c.Add(domains...)
	return nil
}

// LoadFile is Load for a file path.
func (c *Checker) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open disposable domains file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// Len returns the number of listed domains.
func (c *Checker) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.domains)
}

// IsDisposable never fails; malformed input is simply not disposable.
func (c *Checker) IsDisposable(domain string) bool {
	d := normalize(domain)
	if d == "" || strings.ContainsAny(d, " @") {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for {
		if _, found := c.domains[d]; found {
			return true
		}
		dot := strings.IndexByte(d, '.')
		if dot == -1 {
			return false
		}
		d = d[dot+1:]
	}
}

func normalize(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
