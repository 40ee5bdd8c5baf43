package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/starbak/starbak/internal/config"
)

// ErrNoIdentity means neither the configured user id nor the username
// could be resolved to an account. It is fatal for the run.
var ErrNoIdentity = errors.New("no valid github user id or username")

const (
	acceptJSON = "application/vnd.github.v3+json"
	// Topic listing still rides the mercy preview media type.
	acceptTopics = "application/vnd.github.mercy-preview+json"
)

type Client struct {
	baseURL         string
	token           string
	userID          string
	username        string
	pageSize        int
	topContributors int
	http            *http.Client
	log             zerolog.Logger

	resolved *User
}

func NewClient(cfg config.GitHubConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:         cfg.APIBaseURL,
		token:           cfg.Token,
		userID:          cfg.UserID,
		username:        cfg.Username,
		pageSize:        cfg.PageSize,
		topContributors: cfg.TopContributors,
		http:            &http.Client{Timeout: 30 * time.Second},
		log:             log,
	}
}

// ResolveUser maps the configured identity to a canonical account,
// preferring the numeric user id (it survives renames) and falling back
// to the username. The result is cached for the rest of the run.
func (c *Client) ResolveUser(ctx context.Context) (User, error) {
	if c.resolved != nil {
		return *c.resolved, nil
	}

	if c.userID != "" {
		var user User
		err := c.get(ctx, fmt.Sprintf("%s/user/%s", c.baseURL, c.userID), acceptJSON, &user)
		if err == nil {
			c.log.Info().Str("user_id", c.userID).Str("login", user.Login).Msg("resolved identity by user id")
			c.resolved = &user
			return user, nil
		}
		c.log.Warn().Err(err).Str("user_id", c.userID).Msg("user id lookup failed, trying username")
	}

	if c.username != "" {
		var user User
		err := c.get(ctx, fmt.Sprintf("%s/users/%s", c.baseURL, c.username), acceptJSON, &user)
		if err == nil {
			c.log.Info().Str("username", c.username).Int64("id", user.ID).Msg("resolved identity by username")
			c.userID = fmt.Sprintf("%d", user.ID)
			c.resolved = &user
			return user, nil
		}
		c.log.Warn().Err(err).Str("username", c.username).Msg("username lookup failed")
	}

	return User{}, ErrNoIdentity
}

// ListStarred fetches every starred repository of the resolved account,
// page by page, enriching each with contributors, language byte counts,
// and topics. An empty result is not an error; the caller decides how to
// report it.
func (c *Client) ListStarred(ctx context.Context) ([]Repo, error) {
	user, err := c.ResolveUser(ctx)
	if err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/users/%s/starred", c.baseURL, user.Login)
	if c.userID != "" {
		listURL = fmt.Sprintf("%s/user/%s/starred", c.baseURL, c.userID)
	}

	var starred []Repo
	for page := 1; ; page++ {
		var repos []Repo
		url := fmt.Sprintf("%s?page=%d&per_page=%d", listURL, page, c.pageSize)
		if err := c.get(ctx, url, acceptJSON, &repos); err != nil {
			return nil, fmt.Errorf("list starred page %d: %w", page, err)
		}
		if len(repos) == 0 {
			break
		}
		c.log.Debug().Int("page", page).Int("count", len(repos)).Msg("fetched starred page")
		for i := range repos {
			c.enrich(ctx, &repos[i])
			starred = append(starred, repos[i])
		}
	}

	return starred, nil
}

// enrich fills in the auxiliary metadata of one repository. Each fetch
// degrades independently to an empty value; a metadata outage never
// costs a backup.
func (c *Client) enrich(ctx context.Context, repo *Repo) {
	var contributors []Contributor
	if err := c.get(ctx, repo.ContributorsURL, acceptJSON, &contributors); err != nil {
		c.log.Warn().Err(err).Str("repo", repo.FullName).Msg("contributor fetch failed")
		contributors = nil
	}
	if len(contributors) > c.topContributors {
		contributors = contributors[:c.topContributors]
	}
	repo.Contributors = contributors
	if repo.Contributors == nil {
		repo.Contributors = []Contributor{}
	}

	languages := map[string]int64{}
	if err := c.get(ctx, repo.LanguagesURL, acceptJSON, &languages); err != nil {
		c.log.Warn().Err(err).Str("repo", repo.FullName).Msg("language fetch failed")
		languages = map[string]int64{}
	}
	repo.Languages = languages

	var topics struct {
		Names []string `json:"names"`
	}
	if err := c.get(ctx, repo.URL+"/topics", acceptTopics, &topics); err != nil {
		c.log.Warn().Err(err).Str("repo", repo.FullName).Msg("topic fetch failed")
		topics.Names = nil
	}
	repo.Topics = topics.Names
	if repo.Topics == nil {
		repo.Topics = []string{}
	}
}

func (c *Client) get(ctx context.Context, url, accept string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
