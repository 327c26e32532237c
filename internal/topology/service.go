package topology

import (
	"fmt"
	"os"

	"ifsbench/internal"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// builtinProfiles covers the machines the benchmark is routinely run on.
// Site-specific profiles can be added through a profiles file.
var builtinProfiles = map[string]Topology{
	"atos-aa": {SocketsPerNode: 2, CoresPerSocket: 64, ThreadsPerCore: 2},
	"xc40":    {SocketsPerNode: 2, CoresPerSocket: 18, ThreadsPerCore: 2},
	"ac-gpu":  {SocketsPerNode: 2, CoresPerSocket: 64, ThreadsPerCore: 2, GPUsPerNode: 4},
}

type Service struct {
	logger    *zap.Logger
	validator *validator.Validate
	profiles  map[string]Topology
}

func NewService(logger *zap.Logger, validate *validator.Validate) *Service {
	profiles := make(map[string]Topology, len(builtinProfiles))
	for name, profile := range builtinProfiles {
		profiles[name] = profile
	}

	return &Service{
		logger:    logger,
		validator: validate,
		profiles:  profiles,
	}
}

// New validates a topology description. Non-positive core counts are
// rejected here, before any resolution is attempted against it.
func New(validate *validator.Validate, t Topology) (Topology, error) {
	if err := validate.Struct(t); err != nil {
		return Topology{}, fmt.Errorf("invalid topology: %w", err)
	}
	return t, nil
}

// LoadFile merges profiles from a YAML file into the service. File entries
// override built-in profiles of the same name.
func (s *Service) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			s.logger.Warn("Failed to close profiles file", zap.Error(err), zap.String("path", path))
		}
	}(file)

	fileProfiles := map[string]Topology{}
	if err := yaml.NewDecoder(file).Decode(&fileProfiles); err != nil {
		return fmt.Errorf("failed to decode topology profiles: %w", err)
	}

	for name, profile := range fileProfiles {
		validated, err := New(s.validator, profile)
		if err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		s.profiles[name] = validated
		s.logger.Debug("loaded topology profile",
			zap.String("name", name),
			zap.Int("cores_per_node", validated.CoresPerNode()),
			zap.Int("gpus_per_node", validated.GPUsPerNode))
	}

	return nil
}

func (s *Service) Get(name string) (Topology, error) {
	profile, ok := s.profiles[name]
	if !ok {
		return Topology{}, fmt.Errorf("%w: %s", internal.ErrProfileNotFound, name)
	}
	return profile, nil
}

func (s *Service) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	return names
}
