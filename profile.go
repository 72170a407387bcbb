package magi

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed profile.json
var defaultProfileJSON []byte

// Profile is the static resume dataset the console serves and the
// generative providers are grounded on.
type Profile struct {
	User             User               `json:"user"`
	Experience       []Experience       `json:"experience"`
	SkillsCategories map[string][]Skill `json:"skills_categories"`
	GitHub           GitHub             `json:"github"`
	Contact          Contact            `json:"contact"`
}

type User struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	Location  string    `json:"location"`
	Summary   string    `json:"summary"`
	Badges    []string  `json:"badges"`
	Education Education `json:"education"`
}

type Education struct {
	Degree  string `json:"degree"`
	College string `json:"college"`
	Year    string `json:"year"`
	CGPA    string `json:"cgpa"`
}

type Experience struct {
	Role        string `json:"role"`
	Company     string `json:"company"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type Skill struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
	Icon    string `json:"icon"`
}

type GitHub struct {
	Username            string      `json:"username"`
	RepoCount           string      `json:"repo_count"`
	Stats               GitHubStats `json:"stats"`
	HighlightedProjects []Project   `json:"highlighted_projects"`
}

type GitHubStats struct {
	Languages []Language `json:"languages"`
}

type Language struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

type Project struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tech        []string   `json:"tech"`
	RepoURL     string     `json:"repo_url"`
	DemoURL     *string    `json:"demo_url"`
	Image       string     `json:"image,omitempty"`
	Endpoints   []Endpoint `json:"endpoints,omitempty"`
}

type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type Contact struct {
	Email     string `json:"email"`
	LinkedIn  string `json:"linkedin"`
	Instagram string `json:"instagram"`
	GitHub    string `json:"github"`
}

// ProfileSource supplies the current profile. Implementations must be
// safe for concurrent use.
type ProfileSource interface {
	Profile() *Profile
}

type staticProfile struct{ p *Profile }

func (s staticProfile) Profile() *Profile { return s.p }

// StaticProfile returns a ProfileSource that always yields p.
func StaticProfile(p *Profile) ProfileSource {
	return staticProfile{p: p}
}

// DefaultProfile returns a fresh copy of the embedded profile.
func DefaultProfile() *Profile {
	p, err := ParseProfile(defaultProfileJSON)
	if err != nil {
		panic(fmt.Sprintf("magi: embedded profile: %v", err))
	}
	return p
}

// LoadProfile reads and parses a profile JSON file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("magi: read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes profile JSON.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("magi: parse profile: %w", err)
	}
	if p.User.Name == "" {
		return nil, fmt.Errorf("magi: parse profile: user.name is required")
	}
	return &p, nil
}

// FirstProject returns the first highlighted project, if any.
func (p *Profile) FirstProject() (Project, bool) {
	if p == nil || len(p.GitHub.HighlightedProjects) == 0 {
		return Project{}, false
	}
	return p.GitHub.HighlightedProjects[0], true
}
