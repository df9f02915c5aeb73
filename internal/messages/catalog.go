package messages

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pixil98/go-errors"
)

type Key string

const (
	DeathCoordinates Key = "death_coordinates"
	Spectating       Key = "spectating"
	NoPermission     Key = "no_permission"
	InvalidItem      Key = "invalid_item"
	Revived          Key = "revived"
	RevivedOther     Key = "revived_other"
	RevivedRespawn   Key = "revived_respawn"
	RevivedOffline   Key = "revived_offline"
	AdminRemoved     Key = "admin_removed"
	AdminRevived     Key = "admin_revived"
)

var defaults = map[Key]string{
	DeathCoordinates: "&cYou died at &e{x}, {y}, {z} &cin &e{world}&c. Find someone to revive you!",
	Spectating:       "&7You are now a spectator. Have another player revive your corpse!",
	NoPermission:     "&cYou don't have permission to do that.",
	InvalidItem:      "&cYou need a Totem of Undying or a player head to revive {player}!",
	Revived:          "&aYou have been revived by &e{reviver}&a!",
	RevivedOther:     "&aYou revived &e{player}&a!",
	RevivedRespawn:   "&aYou have been revived!",
	RevivedOffline:   "&aYou were revived while offline! Welcome back.",
	AdminRemoved:     "&aYour corpse has been removed by an admin. You are now alive!",
	AdminRevived:     "&aYou have been revived by an admin!",
}

// Data is what templates can reference.
type Data struct {
	Player  string
	Reviver string
	World   string
	X       int
	Y       int
	Z       int
}

var (
	templateFuncs = sprig.TxtFuncMap()

	legacyPlaceholder = regexp.MustCompile(`\{(x|y|z|world|player|reviver)\}`)
	colorCode         = regexp.MustCompile(`&([0-9a-fk-orA-FK-OR])`)
)

// Catalog holds the parsed message templates.
type Catalog struct {
	templates map[Key]*template.Template
}

// NewCatalog parses the default templates with overrides applied. Overrides
// may use Go template syntax or the legacy {x}, {world}, {player} style.
func NewCatalog(overrides map[string]string) (*Catalog, error) {
	sources := make(map[Key]string, len(defaults))
	maps.Copy(sources, defaults)

	el := errors.NewErrorList()
	for k, v := range overrides {
		key := Key(k)
		if _, ok := defaults[key]; !ok {
			el.Add(fmt.Errorf("unknown message %q", k))
			continue
		}
		sources[key] = v
	}

	c := &Catalog{templates: make(map[Key]*template.Template, len(sources))}
	for key, src := range sources {
		tmpl, err := template.New(string(key)).Funcs(templateFuncs).Parse(translate(src))
		if err != nil {
			el.Add(fmt.Errorf("parsing %s: %w", key, err))
			continue
		}
		c.templates[key] = tmpl
	}

	if err := el.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Render expands a message. Failures are logged and yield the message key so
// the recipient still sees something.
func (c *Catalog) Render(ctx context.Context, key Key, data Data) string {
	tmpl, ok := c.templates[key]
	if !ok {
		slog.WarnContext(ctx, "unknown message", "key", key)
		return string(key)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.WarnContext(ctx, "failed to render message", "key", key, "error", err)
		return string(key)
	}
	return buf.String()
}

// Keys lists every known message.
func Keys() []Key {
	keys := slices.Collect(maps.Keys(defaults))
	slices.Sort(keys)
	return keys
}

func translate(src string) string {
	src = legacyPlaceholder.ReplaceAllStringFunc(src, func(m string) string {
		name := strings.Trim(m, "{}")
		return "{{ ." + strings.ToUpper(name[:1]) + name[1:] + " }}"
	})
	return colorCode.ReplaceAllString(src, "§$1")
}
