package game

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	maxNameLen = 20
	suffixLen  = 4

	msgNameLength  = "Name must be between 1 and 20 characters"
	msgNameCharset = "Name may only contain letters, digits, spaces, underscores and hyphens"
	msgNameUpdated = "Name updated"
)

var (
	adjectives = []string{
		"happy", "clever", "brave", "swift", "bright", "calm", "bold", "wise",
		"gentle", "fierce", "lucky", "quiet", "sunny", "witty", "eager", "jolly",
	}
	animals = []string{
		"tiger", "elephant", "dolphin", "eagle", "lion", "panda", "fox", "owl",
		"bear", "wolf", "otter", "lynx", "heron", "badger", "falcon", "koala",
	}
)

// UpdateName validates and stores a display name chosen by the player.
func (e *Engine) UpdateName(playerID, newName string) Result {
	name, msg := normalizeName(newName)
	if msg != "" {
		return reject(msg)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.names[playerID] = name
	e.publishLocked()
	snap := e.snapshotLocked()
	return Result{Success: true, Message: msgNameUpdated, State: &snap}
}

// normalizeName trims and NFC-composes raw, returning a rejection message
// when the result is unacceptable.
func normalizeName(raw string) (string, string) {
	name := norm.NFC.String(strings.TrimSpace(raw))
	if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLen {
		return "", msgNameLength
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			continue
		}
		return "", msgNameCharset
	}
	return name, ""
}

// baseName picks "Adjective Animal" from the first two bytes of the id.
func baseName(playerID string) string {
	var first, second byte
	if len(playerID) > 0 {
		first = playerID[0]
	}
	if len(playerID) > 1 {
		second = playerID[1]
	}
	adj := adjectives[int(first)%len(adjectives)]
	animal := animals[int(second)%len(animals)]
	// Casers are stateful, so each call builds its own.
	return cases.Title(language.English).String(adj + " " + animal)
}

// nameTag is the id reduced to letters and digits, used for suffixes.
func nameTag(playerID string) string {
	tag := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, playerID)
	if tag == "" {
		tag = hex.EncodeToString([]byte(playerID))
	}
	if tag == "" {
		tag = "0"
	}
	return tag
}

// defaultNameLocked derives a deterministic, currently unused name that
// still passes the rename rules.
func (e *Engine) defaultNameLocked(playerID string) string {
	base := baseName(playerID)
	if !e.nameInUseLocked(base) {
		return base
	}
	room := maxNameLen - utf8.RuneCountInString(base) - 1
	tag := []rune(nameTag(playerID))
	for n := min(suffixLen, len(tag), room); n <= min(len(tag), room); n++ {
		candidate := base + " " + string(tag[:n])
		if !e.nameInUseLocked(candidate) {
			return candidate
		}
	}
	for i := 2; ; i++ {
		num := strconv.Itoa(i)
		keep := max(min(len(tag), room-len(num)), 0)
		candidate := base + " " + string(tag[:keep]) + num
		if !e.nameInUseLocked(candidate) {
			return candidate
		}
	}
}

func (e *Engine) nameInUseLocked(name string) bool {
	for _, n := range e.names {
		if n == name {
			return true
		}
	}
	return false
}

// displayNameLocked falls back to the id for players never named.
func (e *Engine) displayNameLocked(playerID string) string {
	if n, ok := e.names[playerID]; ok {
		return n
	}
	return playerID
}
