package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

type Fixtures struct {
	Districts []DistrictFixture `yaml:"districts"`
	Sirens    []SirenFixture    `yaml:"sirens"`
	Users     []UserFixture     `yaml:"users"`
}

type DistrictFixture struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Blocks []string `yaml:"blocks"`
}

type SirenFixture struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location struct {
		Lat float64 `yaml:"lat"`
		Lng float64 `yaml:"lng"`
	} `yaml:"location"`
	Type       []string `yaml:"type"`
	District   string   `yaml:"district"`
	Block      string   `yaml:"block"`
	ParentSite string   `yaml:"parent_site"`
	Color      string   `yaml:"color"`
	Labels     []string `yaml:"labels"`
}

// UserFixture names an environment variable for the password so fixture files
// never carry secrets.
type UserFixture struct {
	Username    string `yaml:"username"`
	Email       string `yaml:"email"`
	Name        string `yaml:"name"`
	Role        string `yaml:"role"`
	PasswordEnv string `yaml:"password_env"`
}

func loadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i := range f.Sirens {
		if f.Sirens[i].Color == "" {
			f.Sirens[i].Color = "#000000"
		}
		if f.Sirens[i].ParentSite == "" {
			f.Sirens[i].ParentSite = f.Sirens[i].Block
		}
	}
	return &f, nil
}

// validate collects every problem instead of stopping at the first.
func (f *Fixtures) validate() error {
	var errs []error
	blocks := make(map[string]map[string]bool)

	seen := make(map[string]bool)
	for i, d := range f.Districts {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("districts[%d]: id and name are required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("districts[%d]: duplicate id %q", i, d.ID))
		}
		seen[d.ID] = true
		blocks[d.Name] = make(map[string]bool, len(d.Blocks))
		for _, b := range d.Blocks {
			blocks[d.Name][b] = true
		}
	}

	seen = make(map[string]bool)
	for i, s := range f.Sirens {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("sirens[%d]: id and name are required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("sirens[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true

		lat, lng := s.Location.Lat, s.Location.Lng
		if math.Abs(lat) > 90 || math.Abs(lng) > 180 {
			errs = append(errs, fmt.Errorf("sirens[%d] %s: location %v,%v out of range", i, s.ID, lat, lng))
		}
		if bs, ok := blocks[s.District]; !ok {
			errs = append(errs, fmt.Errorf("sirens[%d] %s: unknown district %q", i, s.ID, s.District))
		} else if !bs[s.Block] {
			errs = append(errs, fmt.Errorf("sirens[%d] %s: block %q is not in district %q", i, s.ID, s.Block, s.District))
		}
	}

	seen = make(map[string]bool)
	for i, u := range f.Users {
		if u.Username == "" || u.PasswordEnv == "" {
			errs = append(errs, fmt.Errorf("users[%d]: username and password_env are required", i))
			continue
		}
		if seen[u.Username] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
		}
		seen[u.Username] = true
		switch u.Role {
		case "", "user", "admin", "superadmin":
		default:
			errs = append(errs, fmt.Errorf("users[%d] %s: unknown role %q", i, u.Username, u.Role))
		}
	}

	return errors.Join(errs...)
}
