package github

// User is the resolved account identity.
type User struct {
	Login       string `json:"login"`
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

type Owner struct {
	Login   string `json:"login"`
	Type    string `json:"type"`
	HTMLURL string `json:"html_url"`
}

type Contributor struct {
	Login         string `json:"login"`
	Type          string `json:"type"`
	HTMLURL       string `json:"html_url"`
	Contributions int    `json:"contributions"`
}

type License struct {
	Name string `json:"name"`
}

// Repo is one starred repository as returned by the listing endpoint,
// plus the enrichment fields filled in by the client. Timestamps stay as
// the API's RFC 3339 strings; they are carried into the manifest, not
// computed with.
type Repo struct {
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	URL             string   `json:"url"`
	CloneURL        string   `json:"clone_url"`
	SSHURL          string   `json:"ssh_url"`
	HTMLURL         string   `json:"html_url"`
	Description     string   `json:"description"`
	Homepage        string   `json:"homepage"`
	Language        string   `json:"language"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	WatchersCount   int      `json:"watchers_count"`
	Size            int64    `json:"size"`
	Fork            bool     `json:"fork"`
	Archived        bool     `json:"archived"`
	Private         bool     `json:"private"`
	DefaultBranch   string   `json:"default_branch"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	PushedAt        string   `json:"pushed_at"`
	License         *License `json:"license"`
	Owner           Owner    `json:"owner"`
	ContributorsURL string   `json:"contributors_url"`
	LanguagesURL    string   `json:"languages_url"`

	// Enrichment, fetched per repository; empty on fetch failure.
	Topics       []string         `json:"topics"`
	Languages    map[string]int64 `json:"-"`
	Contributors []Contributor    `json:"-"`
}

// LicenseName returns the license display name, if any.
func (r *Repo) LicenseName() string {
	if r.License == nil {
		return ""
	}
	return r.License.Name
}
