// Package reconcile merges newly extracted data into existing profiles and resumes without losing anything.
package reconcile

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/nikogura/resumelm/pkg/model"
)

// Sentinel is the placeholder the extraction step uses for undeterminable strings.
const Sentinel = "<UNKNOWN>"

// sentinelRun matches a Sentinel together with the blanks before it.
//
//nolint:gochecknoglobals // compiled once
var sentinelRun = regexp.MustCompile(`[ \t]*` + regexp.QuoteMeta(Sentinel))

// Strip removes every Sentinel occurrence from s. A string that was only a Sentinel becomes empty.
func Strip(s string) (cleaned string) {
	if !strings.Contains(s, Sentinel) {
		cleaned = s
		return cleaned
	}
	cleaned = strings.TrimSpace(sentinelRun.ReplaceAllString(s, ""))
	return cleaned
}

// Sanitize strips every Sentinel from the strings reachable from v, including ones embedded in longer text.
// v must be a pointer. Strings in structs, slices, arrays, maps and nested pointers are all visited.
func Sanitize(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return
	}
	sanitizeValue(rv.Elem())
}

func sanitizeValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(Strip(v.String()))
		}
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return
		}
		if v.Kind() == reflect.Interface {
			inner := v.Elem()
			// interface contents are not addressable; sanitize a copy and put it back
			cp := reflect.New(inner.Type()).Elem()
			cp.Set(inner)
			sanitizeValue(cp)
			if v.CanSet() {
				v.Set(cp)
			}
			return
		}
		sanitizeValue(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).PkgPath != "" {
				continue
			}
			sanitizeValue(v.Field(i))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			sanitizeValue(v.Index(i))
		}
	case reflect.Map:
		if v.IsNil() {
			return
		}
		for _, key := range v.MapKeys() {
			elem := v.MapIndex(key)
			cp := reflect.New(elem.Type()).Elem()
			cp.Set(elem)
			sanitizeValue(cp)
			v.SetMapIndex(key, cp)
		}
	}
}

// Contact merges identity fields: incoming wins only when it is non-empty after sanitizing.
func Contact(existing, incoming model.Contact) (merged model.Contact) {
	merged = model.Contact{
		FirstName:   scalar(existing.FirstName, incoming.FirstName),
		LastName:    scalar(existing.LastName, incoming.LastName),
		Email:       scalar(existing.Email, incoming.Email),
		PhoneNumber: scalar(existing.PhoneNumber, incoming.PhoneNumber),
		Location:    scalar(existing.Location, incoming.Location),
		Website:     scalar(existing.Website, incoming.Website),
		LinkedInURL: scalar(existing.LinkedInURL, incoming.LinkedInURL),
		GitHubURL:   scalar(existing.GitHubURL, incoming.GitHubURL),
	}
	return merged
}

func scalar(existing, incoming string) (v string) {
	v = existing
	trimmed := strings.TrimSpace(incoming)
	if trimmed != "" && trimmed != Sentinel {
		v = incoming
	}
	return v
}

// Sections merges list fields. Incoming records are prepended ahead of existing ones and nothing
// existing is removed. Skill categories whose names match an existing category are merged into it.
func Sections(existing, incoming model.Sections) (merged model.Sections) {
	ex := existing.Clone()
	in := incoming.Clone()
	Sanitize(&in)

	merged = model.Sections{
		WorkExperience: append(in.WorkExperience, ex.WorkExperience...),
		Education:      append(in.Education, ex.Education...),
		Skills:         Skills(ex.Skills, in.Skills),
		Projects:       append(in.Projects, ex.Projects...),
	}
	return merged
}

// Skills merges skill categories. A category matching an existing name (case-insensitive, trimmed)
// has its items unioned into the existing category, existing items first. Other categories are prepended.
func Skills(existing, incoming []model.SkillCategory) (merged []model.SkillCategory) {
	out := make([]model.SkillCategory, len(existing))
	index := make(map[string]int, len(existing))
	for i, cat := range existing {
		cat.Items = append([]string{}, cat.Items...)
		out[i] = cat
		key := categoryKey(cat.Category)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	fresh := make([]model.SkillCategory, 0, len(incoming))
	for _, cat := range incoming {
		key := categoryKey(cat.Category)
		if i, ok := index[key]; ok && key != "" {
			out[i].Items = union(out[i].Items, cat.Items)
			continue
		}
		fresh = append(fresh, model.SkillCategory{Category: cat.Category, Items: union(nil, cat.Items)})
	}

	merged = append(fresh, out...)
	return merged
}

func categoryKey(name string) (key string) {
	key = strings.ToLower(strings.TrimSpace(name))
	return key
}

func union(existing, incoming []string) (out []string) {
	out = make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, item := range list {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

// Profile merges incoming extracted data into an existing profile.
func Profile(existing, incoming model.Profile) (merged model.Profile) {
	Sanitize(&incoming)

	merged = existing
	merged.Contact = Contact(existing.Contact, incoming.Contact)
	merged.Sections = Sections(existing.Sections, incoming.Sections)
	return merged
}

// Resume merges incoming extracted data into an existing resume. Ownership, job link and flags stay as they are.
func Resume(existing, incoming model.Resume) (merged model.Resume) {
	Sanitize(&incoming)

	merged = existing
	merged.Contact = Contact(existing.Contact, incoming.Contact)
	merged.Sections = Sections(existing.Sections, incoming.Sections)
	return merged
}

// ResetProfile returns the empty skeleton for p. This is the only destructive path for a profile.
func ResetProfile(p model.Profile) (reset model.Profile) {
	reset = model.EmptyProfile(p)
	return reset
}
