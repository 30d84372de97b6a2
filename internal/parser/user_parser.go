package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
)

// MaxNameLength is the longest display name accepted
const MaxNameLength = 32

var nameRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} ._-]*$`)

// NormalizeName trims a display name and checks it is usable
// Accepts letters, digits, spaces, dots, dashes and underscores,
// starting with a letter or digit
func NormalizeName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", apperrors.New(apperrors.CodeUserNameEmpty, "name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apperrors.New(apperrors.CodeUserNameInvalid,
			fmt.Sprintf("name is too long (max %d characters)", MaxNameLength))
	}
	if !nameRegex.MatchString(name) {
		return "", apperrors.New(apperrors.CodeUserNameInvalid,
			"name may only contain letters, digits, spaces, dots, dashes and underscores")
	}
	return name, nil
}

// userNames implements fuzzy.Source over a user list
type userNames []models.User

func (u userNames) Len() int {
	return len(u)
}

func (u userNames) String(i int) string {
	return strings.ToLower(u[i].Name)
}

// ResolveUser finds the user a reference points at. The reference may be a
// user id, an exact name (any case) or an unambiguous fuzzy match on names.
func ResolveUser(ref string, users []models.User) (models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.User{}, apperrors.New(apperrors.CodeUserUnspecified,
			"no user given; pass --user or set user in the config")
	}

	for _, u := range users {
		if u.ID == ref {
			return u, nil
		}
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, ref) {
			return u, nil
		}
	}

	matches := fuzzy.FindFrom(strings.ToLower(ref), userNames(users))
	switch {
	case len(matches) == 0:
		return models.User{}, apperrors.Wrap(apperrors.CodeUserNotFound, "user not found", fmt.Errorf("no user matches %q", ref))
	case len(matches) == 1 || matches[0].Score > matches[1].Score:
		return users[matches[0].Index], nil
	}

	var names []string
	for _, m := range matches {
		if m.Score != matches[0].Score {
			break
		}
		names = append(names, users[m.Index].Name)
	}
	return models.User{}, apperrors.New(apperrors.CodeUserAmbiguous,
		fmt.Sprintf("%q matches several users: %s", ref, strings.Join(names, ", ")))
}
