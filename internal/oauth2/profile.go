// Package oauth2 maps provider-specific profile payloads onto a uniform
// profile record. Adding a provider means adding one case to the switch
// below and one extraction function.
package oauth2

import (
	"fmt"
	"strings"

	"github.com/bappy/identity-service/internal/domain"
)

// Profile is the uniform attribute record extracted from a provider payload.
type Profile struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	ImageURL  string
}

// ExtractProfile resolves the provider name and extracts a Profile from
// the raw attribute map the provider returned. Fails with
// domain.ErrUnsupportedProvider for unknown providers and
// domain.ErrMissingEmail when the payload carries no email.
func ExtractProfile(providerName string, attributes map[string]any) (domain.AuthProvider, Profile, error) {
	var profile Profile
	var provider domain.AuthProvider

	switch strings.ToLower(providerName) {
	case "google":
		provider = domain.ProviderGoogle
		profile = extractGoogle(attributes)
	case "github":
		provider = domain.ProviderGithub
		profile = extractGithub(attributes)
	case "facebook":
		provider = domain.ProviderFacebook
		profile = extractFacebook(attributes)
	default:
		return "", Profile{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, providerName)
	}

	if profile.Email == "" {
		return "", Profile{}, fmt.Errorf("%w: %s", domain.ErrMissingEmail, providerName)
	}

	return provider, profile, nil
}

func extractGoogle(attrs map[string]any) Profile {
	return Profile{
		ID:        stringAttr(attrs, "sub"),
		Email:     stringAttr(attrs, "email"),
		FirstName: stringAttr(attrs, "given_name"),
		LastName:  stringAttr(attrs, "family_name"),
		ImageURL:  stringAttr(attrs, "picture"),
	}
}

func extractGithub(attrs map[string]any) Profile {
	first, last := splitFullName(stringAttr(attrs, "name"))
	return Profile{
		ID:        stringAttr(attrs, "id"),
		Email:     stringAttr(attrs, "email"),
		FirstName: first,
		LastName:  last,
		ImageURL:  stringAttr(attrs, "avatar_url"),
	}
}

func extractFacebook(attrs map[string]any) Profile {
	profile := Profile{
		ID:        stringAttr(attrs, "id"),
		Email:     stringAttr(attrs, "email"),
		FirstName: stringAttr(attrs, "first_name"),
		LastName:  stringAttr(attrs, "last_name"),
	}

	// Facebook nests the avatar under picture.data.url
	if picture, ok := attrs["picture"].(map[string]any); ok {
		if data, ok := picture["data"].(map[string]any); ok {
			profile.ImageURL = stringAttr(data, "url")
		}
	}

	return profile
}

// stringAttr reads an attribute as a string, formatting numeric ids
// (GitHub returns a numeric id in JSON payloads).
func stringAttr(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// splitFullName splits a display name into first and last tokens. A
// single-word name becomes the first name with an empty last name.
func splitFullName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[len(parts)-1]
}
