package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v2"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/httpapi"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/strategy"
)

const defaultTokenTTL = time.Hour

// apiBase picks the engine URL: --api, else the configured local port.
func apiBase(c *cli.Context) (string, []byte, error) {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return "", nil, err
	}
	base := c.String(flagAPI)
	if base == "" {
		base = fmt.Sprintf("http://127.0.0.1:%d", cfg.App.Port)
	}
	return strings.TrimRight(base, "/"), []byte(cfg.API.JWTSecret), nil
}

// callAPI POSTs to path on a running engine, authenticating when a secret
// is configured, and prints the JSON reply.
func callAPI(c *cli.Context, path string) error {
	base, secret, err := apiBase(c)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(c.Context, http.MethodPost, base+path, nil)
	if err != nil {
		return err
	}
	if len(secret) > 0 {
		tok, err := mintToken(secret, "cli", time.Minute)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	hc := &http.Client{Timeout: 15 * time.Second}
	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("engine unreachable at %s: %w", base, err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	if res.StatusCode >= 300 {
		var apiErr httpapi.APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("engine returned %s", res.Status)
	}
	fmt.Fprintln(c.App.Writer, strings.TrimSpace(string(body)))
	return nil
}

func runEnqueue(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("usage: engine enqueue <job-id>")
	}
	return callAPI(c, "/jobs/"+url.PathEscape(id)+"/enqueue")
}

func runRetry(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("usage: engine retry <posting-id>")
	}
	return callAPI(c, "/postings/"+url.PathEscape(id)+"/retry")
}

func runBoards(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(c, cfg)
	if err != nil {
		return err
	}
	boards := catalog.Enabled()
	if c.Bool(flagAll) {
		boards = catalog.All()
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tSTRATEGY\tLOGIN\tPOST URL")
	for _, b := range boards {
		st := b.Strategy
		if st == "" {
			st = strategy.NameDiscovery
			if b.HasStaticSelectors() {
				st = strategy.NameSelector
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n", b.ID, b.Name, b.Enabled, st, b.Login.Mode, b.PostURL)
	}
	return tw.Flush()
}

func mintToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	return httpapi.SignToken(secret, subject, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
}

func runToken(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.API.JWTSecret == "" {
		return errors.New("POSTJOB_JWT_SECRET is not set; operator endpoints are open")
	}
	tok, err := mintToken([]byte(cfg.API.JWTSecret), c.String(flagSubject), c.Duration(flagTTL))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, tok)
	return nil
}

func runCheck(c *cli.Context) error {
	cfg, path, err := loadConfig(c)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(c, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "config %s ok; %d boards (%d enabled)\n", path, len(catalog.All()), len(catalog.Enabled()))

	if !c.Bool(flagNormalize) {
		return nil
	}
	// Rewrite from the file alone so env-only values never land on disk.
	raw, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	normalized, _ := config.NormalizeAndValidate(raw)
	if err := config.SaveAtomic(path, normalized); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote normalized config to %s (previous kept as %s.bak)\n", path, path)
	return nil
}
