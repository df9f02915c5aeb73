package lifecycle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/messages"
	"github.com/pixil98/go-revival/internal/visibility"
	"github.com/pixil98/go-revival/internal/world"
)

const DefaultCooldown = time.Second

type CorpseSettings struct {
	UseSwimmingPose bool `json:"use_swimming_pose"`
	Glowing         bool `json:"glowing"`
}

// Settings are the operator tunables that can be reloaded at runtime.
type Settings struct {
	SafeLocationSearchRadius int               `json:"safe_location_search_radius"`
	Corpse                   CorpseSettings    `json:"corpse"`
	ConsumeItem              bool              `json:"consume_item"`
	RevivalItems             []string          `json:"revival_items"`
	Cooldown                 string            `json:"cooldown"`
	Messages                 map[string]string `json:"messages"`
}

func DefaultSettings() *Settings {
	return &Settings{
		SafeLocationSearchRadius: corpse.DefaultSearchRadius,
		Corpse:                   CorpseSettings{UseSwimmingPose: true},
		ConsumeItem:              true,
		RevivalItems:             []string{string(world.MaterialTotemOfUndying)},
		Cooldown:                 DefaultCooldown.String(),
	}
}

// LoadSettings reads a settings file over the defaults. An empty path or a
// missing file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("settings file not found, using defaults", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings %q: %w", path, err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %q: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings %q: %w", path, err)
	}
	return s, nil
}

func (s *Settings) Validate() error {
	el := errors.NewErrorList()

	if s.SafeLocationSearchRadius < 0 {
		el.Add(fmt.Errorf("safe_location_search_radius must not be negative"))
	}

	if s.Cooldown != "" {
		if d, err := time.ParseDuration(s.Cooldown); err != nil {
			el.Add(fmt.Errorf("parsing cooldown: %w", err))
		} else if d < 0 {
			el.Add(fmt.Errorf("cooldown must not be negative"))
		}
	}

	for i, item := range s.RevivalItems {
		if world.ParseMaterial(item) == "" {
			el.Add(fmt.Errorf("revival_items %d: material must be set", i))
		}
	}

	return el.Err()
}

func (s *Settings) cooldown() time.Duration {
	d, err := time.ParseDuration(s.Cooldown)
	if err != nil {
		return DefaultCooldown
	}
	return d
}

func (s *Settings) appearance() visibility.Appearance {
	return visibility.Appearance{
		SwimmingPose: s.Corpse.UseSwimmingPose,
		Glowing:      s.Corpse.Glowing,
	}
}

// revivalItems always includes player heads.
func (s *Settings) revivalItems() map[world.Material]bool {
	items := map[world.Material]bool{world.MaterialPlayerHead: true}
	for _, name := range s.RevivalItems {
		items[world.ParseMaterial(name)] = true
	}
	return items
}

// compiled is the form of Settings used on the hot path.
type compiled struct {
	settings *Settings
	catalog  *messages.Catalog
	items    map[world.Material]bool
	cooldown time.Duration
}

func compile(s *Settings) (*compiled, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cat, err := messages.NewCatalog(s.Messages)
	if err != nil {
		return nil, fmt.Errorf("building messages: %w", err)
	}

	return &compiled{
		settings: s,
		catalog:  cat,
		items:    s.revivalItems(),
		cooldown: s.cooldown(),
	}, nil
}
