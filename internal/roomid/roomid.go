// Package roomid creates memorable room ids and extracts them from links
// pasted by users.
package roomid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// Generate returns a random id such as "sleepy-otter-comet".
func Generate() (string, error) {
	parts := make([]string, 0, 3)
	for _, list := range [][]string{adjectives, animals, things} {
		i, err := randomIndex(len(list))
		if err != nil {
			return "", fmt.Errorf("generate room id: %w", err)
		}
		parts = append(parts, list[i])
	}
	return strings.Join(parts, "-"), nil
}

// randomIndex returns a cryptographically secure index into a slice of length max.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// Parse accepts either a bare room id or a room link of the form
// https://host/room/<id> (web app) or https://host/r/<id> (short link).
func Parse(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if !strings.Contains(input, "/") {
		return input, nil
	}

	path := input
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("parse room link: %w", err)
		}
		path = u.Path
	}

	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	for i, part := range parts {
		if (part == "room" || part == "r") && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from %q", input)
}

// Link builds the shareable web link for a room.
func Link(base, id string) string {
	return strings.TrimSuffix(base, "/") + "/room/" + url.PathEscape(id)
}
