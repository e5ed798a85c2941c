package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// NetrcEntry holds the credentials for one machine
type NetrcEntry struct {
	Machine  string
	Login    string
	Password string
	Account  string
}

// Netrc is a parsed netrc file. Publish targets without inline credentials
// look their host up here.
type Netrc struct {
	machines map[string]*NetrcEntry
	fallback *NetrcEntry
}

// NetrcPath returns ~/.netrc, or %USERPROFILE%\_netrc on Windows
func NetrcPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "_netrc")
	}
	return filepath.Join(home, ".netrc")
}

// LoadNetrc parses the default netrc file. A missing file yields an empty
// Netrc.
func LoadNetrc() (*Netrc, error) {
	path := NetrcPath()
	if path == "" {
		return &Netrc{machines: map[string]*NetrcEntry{}}, nil
	}
	n, err := ParseNetrc(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Netrc{machines: map[string]*NetrcEntry{}}, nil
	}
	return n, err
}

// ParseNetrc reads and parses the file at path
func ParseNetrc(path string) (*Netrc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading netrc file: %w", err)
	}
	return ParseNetrcString(string(data)), nil
}

// ParseNetrcString parses netrc content. Tokens may span lines; macdef
// bodies and # comments are skipped.
func ParseNetrcString(content string) *Netrc {
	n := &Netrc{machines: make(map[string]*NetrcEntry)}

	tokens := netrcTokens(content)
	var cur *NetrcEntry

	next := func(i *int) string {
		if *i+1 >= len(tokens) {
			return ""
		}
		*i++
		return tokens[*i]
	}

	for i := 0; i < len(tokens); i++ {
		switch strings.ToLower(tokens[i]) {
		case "machine":
			host := strings.ToLower(next(&i))
			cur = &NetrcEntry{Machine: host}
			n.machines[host] = cur
		case "default":
			cur = &NetrcEntry{}
			n.fallback = cur
		case "login":
			if v := next(&i); cur != nil {
				cur.Login = v
			}
		case "password":
			if v := next(&i); cur != nil {
				cur.Password = v
			}
		case "account":
			if v := next(&i); cur != nil {
				cur.Account = v
			}
		}
	}

	return n
}

// netrcTokens drops macro bodies and comments, then splits the rest into
// whitespace separated tokens honouring single and double quotes.
func netrcTokens(content string) []string {
	var kept strings.Builder
	inMacro := false
	lines := bufio.NewScanner(strings.NewReader(content))
	for lines.Scan() {
		line := lines.Text()
		trimmed := strings.TrimSpace(line)
		if inMacro {
			if trimmed == "" {
				inMacro = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "macdef") {
			inMacro = true
			continue
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}

	var tokens []string
	var tok strings.Builder
	var quote rune
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, tok.String())
			tok.Reset()
			inToken = false
		}
	}

	for _, r := range kept.String() {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			tok.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			tok.WriteRune(r)
			inToken = true
		}
	}
	flush()

	return tokens
}

// Lookup returns the credentials for host, falling back to the default entry
func (n *Netrc) Lookup(host string) (login, password string, ok bool) {
	if n == nil {
		return "", "", false
	}
	entry, found := n.machines[strings.ToLower(host)]
	if !found {
		entry = n.fallback
	}
	if entry == nil {
		return "", "", false
	}
	return entry.Login, entry.Password, true
}

// Len returns the number of machine entries, the default excluded
func (n *Netrc) Len() int {
	if n == nil {
		return 0
	}
	return len(n.machines)
}
