package robots

import (
	"context"
	"fmt"
	"io"
	"medicine_importer/internal/logger"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// Checker evaluates robots.txt for one target URL at a time. Any failure to
// obtain the file allows access.
//
// The wildcard group and every group whose agent name contains the
// checker's agent are all active; a Disallow in any of them denies.
// Allow lines are ignored.
type Checker struct {
	client *http.Client
	agent  string
	logger *zap.Logger
}

// NewChecker builds a checker for agent, the importer identifier.
func NewChecker(client *http.Client, agent string, l *zap.Logger) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Checker{client: client, agent: agent, logger: logger.OrNop(l)}
}

func (c *Checker) Allowed(ctx context.Context, target string) (bool, error) {
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false, fmt.Errorf("parse target url %q: %v", target, err)
	}

	rules, err := c.load(ctx, u)
	if err != nil {
		c.logger.Info("robots.txt unavailable, allowing", zap.String("host", u.Host), zap.Error(err))
		return true, nil
	}
	if rules == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	for _, group := range rules.groups {
		if !group.Test(path) {
			c.logger.Info("robots.txt disallows target",
				zap.String("url", target),
				zap.String("agent", c.agent),
				zap.String("group", group.Agent),
			)
			return false, nil
		}
	}
	return true, nil
}

type ruleSet struct {
	groups []*robotstxt.Group
}

// parseRules keeps only Disallow rules and resolves the active groups.
func parseRules(body []byte, agent string) (*ruleSet, error) {
	var (
		kept   []string
		agents []string
	)
	for _, line := range strings.Split(string(body), "\n") {
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			kept = append(kept, line)
			continue
		}
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "allow":
			continue
		case "user-agent":
			if i := strings.Index(value, "#"); i >= 0 {
				value = value[:i]
			}
			agents = append(agents, strings.ToLower(strings.TrimSpace(value)))
		}
		kept = append(kept, line)
	}

	data, err := robotstxt.FromString(strings.Join(kept, "\n"))
	if err != nil {
		return nil, err
	}

	rules := &ruleSet{}
	if g := data.FindGroup("*"); g != nil {
		rules.groups = append(rules.groups, g)
	}
	agent = strings.ToLower(strings.TrimSpace(agent))
	if agent == "" {
		return rules, nil
	}
	seen := map[string]bool{"*": true}
	for _, name := range agents {
		if seen[name] || !strings.Contains(name, agent) {
			continue
		}
		seen[name] = true
		if g := data.FindGroup(name); g != nil {
			rules.groups = append(rules.groups, g)
		}
	}
	return rules, nil
}

// load returns nil rules when the file is absent.
func (c *Checker) load(ctx context.Context, u *url.URL) (*ruleSet, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}
	return parseRules(body, c.agent)
}
