package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kinemap/roadtrack/internal/matutil"
)

// VehicleStateInitialParameters is the tuning surface for one estimator run:
// the three inverse-Wishart prior scale matrices/degrees of freedom of
// spec.md §4.8's "Prior construction", the default observation interval of
// §4.5/§6, the particle count, a seed, and the edge-segmentation target
// distance of §4.7. Every field is optional, following the teacher's
// TuningConfig: a field omitted from JSON keeps its Get* default, so partial
// configs are safe.
type VehicleStateInitialParameters struct {
	ObsCovPriorScale     []float64 `json:"obs_cov_prior_scale,omitempty"`
	ObsCovPriorDof       *int      `json:"obs_cov_prior_dof,omitempty"`
	OnRoadCovPriorScale  []float64 `json:"on_road_cov_prior_scale,omitempty"`
	OnRoadCovPriorDof    *int      `json:"on_road_cov_prior_dof,omitempty"`
	OffRoadCovPriorScale []float64 `json:"off_road_cov_prior_scale,omitempty"`
	OffRoadCovPriorDof   *int      `json:"off_road_cov_prior_dof,omitempty"`

	InitialObsFreqSeconds *float64 `json:"initial_obs_freq_seconds,omitempty"`
	NumParticles          *int     `json:"num_particles,omitempty"`
	Seed                  *int64   `json:"seed,omitempty"`
	EdgeSegmentDistance   *float64 `json:"edge_segment_distance,omitempty"`
}

// EmptyVehicleStateInitialParameters returns a config with every field unset.
// Use LoadVehicleStateInitialParameters to load actual values from a file.
func EmptyVehicleStateInitialParameters() *VehicleStateInitialParameters {
	return &VehicleStateInitialParameters{}
}

// LoadVehicleStateInitialParameters loads a VehicleStateInitialParameters
// from a JSON file, validated the same way the teacher's tuning config is:
// .json extension, bounded file size, and a Validate() pass.
func LoadVehicleStateInitialParameters(path string) (*VehicleStateInitialParameters, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyVehicleStateInitialParameters()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that any set fields are well-formed.
func (c *VehicleStateInitialParameters) Validate() error {
	if len(c.ObsCovPriorScale) != 0 && len(c.ObsCovPriorScale) != 2 {
		return fmt.Errorf("obs_cov_prior_scale must have length 2, got %d", len(c.ObsCovPriorScale))
	}
	if len(c.OnRoadCovPriorScale) != 0 && len(c.OnRoadCovPriorScale) != 2 {
		return fmt.Errorf("on_road_cov_prior_scale must have length 2, got %d", len(c.OnRoadCovPriorScale))
	}
	if len(c.OffRoadCovPriorScale) != 0 && len(c.OffRoadCovPriorScale) != 4 {
		return fmt.Errorf("off_road_cov_prior_scale must have length 4, got %d", len(c.OffRoadCovPriorScale))
	}
	if c.NumParticles != nil && *c.NumParticles <= 0 {
		return fmt.Errorf("num_particles must be positive, got %d", *c.NumParticles)
	}
	if c.InitialObsFreqSeconds != nil && *c.InitialObsFreqSeconds <= 0 {
		return fmt.Errorf("initial_obs_freq_seconds must be positive, got %f", *c.InitialObsFreqSeconds)
	}
	if c.EdgeSegmentDistance != nil && *c.EdgeSegmentDistance <= 0 {
		return fmt.Errorf("edge_segment_distance must be positive, got %f", *c.EdgeSegmentDistance)
	}
	return nil
}

// GetObsCovPriorScale returns the observation-covariance prior's diagonal
// scale, or a default of 25 square meters per axis (a loose ~5m GPS fix).
func (c *VehicleStateInitialParameters) GetObsCovPriorScale() []float64 {
	if len(c.ObsCovPriorScale) == 0 {
		return []float64{25, 25}
	}
	return c.ObsCovPriorScale
}

// GetObsCovPriorDof returns the observation-covariance prior's degrees of
// freedom, or a default of 10.
func (c *VehicleStateInitialParameters) GetObsCovPriorDof() int {
	if c.ObsCovPriorDof == nil {
		return 10
	}
	return *c.ObsCovPriorDof
}

// GetOnRoadCovPriorScale returns the on-road process-covariance prior's
// diagonal scale, or a default of (0.1, 0.5) for (position, velocity).
func (c *VehicleStateInitialParameters) GetOnRoadCovPriorScale() []float64 {
	if len(c.OnRoadCovPriorScale) == 0 {
		return []float64{0.1, 0.5}
	}
	return c.OnRoadCovPriorScale
}

// GetOnRoadCovPriorDof returns the on-road process-covariance prior's
// degrees of freedom, or a default of 10.
func (c *VehicleStateInitialParameters) GetOnRoadCovPriorDof() int {
	if c.OnRoadCovPriorDof == nil {
		return 10
	}
	return *c.OnRoadCovPriorDof
}

// GetOffRoadCovPriorScale returns the off-road process-covariance prior's
// diagonal scale, or a default of (0.1, 0.5, 0.1, 0.5) for (x, xdot, y, ydot).
func (c *VehicleStateInitialParameters) GetOffRoadCovPriorScale() []float64 {
	if len(c.OffRoadCovPriorScale) == 0 {
		return []float64{0.1, 0.5, 0.1, 0.5}
	}
	return c.OffRoadCovPriorScale
}

// GetOffRoadCovPriorDof returns the off-road process-covariance prior's
// degrees of freedom, or a default of 10.
func (c *VehicleStateInitialParameters) GetOffRoadCovPriorDof() int {
	if c.OffRoadCovPriorDof == nil {
		return 10
	}
	return *c.OffRoadCovPriorDof
}

// GetInitialObsFreqSeconds returns the assumed observation interval used
// when a GpsObservation has no predecessor, or a default of 1 second.
func (c *VehicleStateInitialParameters) GetInitialObsFreqSeconds() float64 {
	if c.InitialObsFreqSeconds == nil {
		return 1.0
	}
	return *c.InitialObsFreqSeconds
}

// GetNumParticles returns the particle count, or a default of 100.
func (c *VehicleStateInitialParameters) GetNumParticles() int {
	if c.NumParticles == nil {
		return 100
	}
	return *c.NumParticles
}

// GetSeed returns the configured PRNG seed, or a fixed default seed so runs
// are reproducible unless a caller explicitly asks for a different one.
func (c *VehicleStateInitialParameters) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetEdgeSegmentDistance returns the §4.7 edge-segmentation target distance,
// or a default of 200 meters.
func (c *VehicleStateInitialParameters) GetEdgeSegmentDistance() float64 {
	if c.EdgeSegmentDistance == nil {
		return 200
	}
	return *c.EdgeSegmentDistance
}

func diagPrior(scale []float64, dof int) *matutil.InverseWishart {
	return matutil.NewInverseWishartPrior(scale, float64(dof))
}

// BuildObsCovPrior constructs the observation-covariance inverse-Wishart
// prior from this config.
func (c *VehicleStateInitialParameters) BuildObsCovPrior() *matutil.InverseWishart {
	return diagPrior(c.GetObsCovPriorScale(), c.GetObsCovPriorDof())
}

// BuildOnRoadCovPrior constructs the on-road process-covariance
// inverse-Wishart prior from this config.
func (c *VehicleStateInitialParameters) BuildOnRoadCovPrior() *matutil.InverseWishart {
	return diagPrior(c.GetOnRoadCovPriorScale(), c.GetOnRoadCovPriorDof())
}

// BuildOffRoadCovPrior constructs the off-road process-covariance
// inverse-Wishart prior from this config.
func (c *VehicleStateInitialParameters) BuildOffRoadCovPrior() *matutil.InverseWishart {
	return diagPrior(c.GetOffRoadCovPriorScale(), c.GetOffRoadCovPriorDof())
}

