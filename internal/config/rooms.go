package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/room-booking/internal/application"
)

type roomSeedFile struct {
	Rooms []roomSeed `yaml:"rooms"`
}

type roomSeed struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Location   string   `yaml:"location"`
	Capacity   int      `yaml:"capacity"`
	Facilities []string `yaml:"facilities"`
}

// LoadRooms reads the room catalog seed. Field validation happens in
// RoomService.SeedRooms.
func LoadRooms(path string) ([]application.RoomInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read room seed %s: %w", path, err)
	}
	return ParseRooms(data)
}

// ParseRooms decodes a YAML document with a top level rooms list. Unknown
// keys are rejected.
func ParseRooms(data []byte) ([]application.RoomInput, error) {
	var file roomSeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode room seed: %w", err)
	}

	out := make([]application.RoomInput, 0, len(file.Rooms))
	for _, r := range file.Rooms {
		out = append(out, application.RoomInput{
			ID:         r.ID,
			Name:       r.Name,
			Location:   r.Location,
			Capacity:   r.Capacity,
			Facilities: r.Facilities,
		})
	}
	return out, nil
}
