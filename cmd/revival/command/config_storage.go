package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/storage"
	"github.com/pixil98/go-revival/internal/world"
)

const corpseCollection = "corpses"

type StorageConfig struct {
	Driver storage.Driver `json:"driver" env:"DRIVER"`
	Path   string         `json:"path" env:"PATH"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	if c.Driver != "" && !c.Driver.Valid() {
		el.Add(fmt.Errorf("storage: %w: %q", storage.ErrUnknownDriver, c.Driver))
	}
	if c.Path == "" {
		el.Add(fmt.Errorf("storage: path is required"))
	}

	return el.Err()
}

func (c *StorageConfig) BuildCorpseStore() (storage.Storer[*corpse.Record], error) {
	s, err := storage.Open[*corpse.Record](c.Driver, c.Path, corpseCollection)
	if err != nil {
		return nil, fmt.Errorf("opening corpse store: %w", err)
	}
	return s, nil
}

// WorldsConfig points at a directory of world definition assets, one file
// per world named by its asset id.
type WorldsConfig struct {
	Path string `json:"path" env:"PATH"`
}

func (c *WorldsConfig) validate() error {
	if c.Path == "" {
		return nil
	}
	if _, err := os.Stat(c.Path); err != nil {
		return fmt.Errorf("worlds: invalid path %q: %w", c.Path, err)
	}
	return nil
}

func (c *WorldsConfig) BuildWorlds() (*world.Worlds, error) {
	if c.Path == "" {
		return world.NewWorlds(nil), nil
	}

	defs, err := storage.NewFileStore[*world.Definition](c.Path)
	if err != nil {
		return nil, fmt.Errorf("loading worlds: %w", err)
	}
	defer defs.Close()

	return world.NewWorlds(defs.GetAll()), nil
}
