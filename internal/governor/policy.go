package governor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ActivityType is a closed enum of governed outbound action kinds.
type ActivityType string

const (
	ActivityInvitation  ActivityType = "invitation"
	ActivityProfileView ActivityType = "profile_view"
	ActivityComment     ActivityType = "comment"
	ActivityLike        ActivityType = "like"
	ActivityMessage     ActivityType = "message"
	ActivitySearch      ActivityType = "search"
)

// AllActivityTypes lists every governed type.
var AllActivityTypes = []ActivityType{
	ActivityInvitation, ActivityProfileView, ActivityComment,
	ActivityLike, ActivityMessage, ActivitySearch,
}

// EngagementTypes are the rate-sensitive outbound types considered by the
// throttle circuit breaker. Searches and profile views are excluded.
var EngagementTypes = []ActivityType{
	ActivityInvitation, ActivityComment, ActivityLike, ActivityMessage,
}

// Policy holds the platform-safety limits for one activity type.
type Policy struct {
	Daily       int           `yaml:"daily"`
	Weekly      int           `yaml:"weekly"`      // 0 = no weekly limit
	Recommended int           `yaml:"recommended"` // safer daily limit
	DelayMin    time.Duration `yaml:"delay_min"`
	DelayMax    time.Duration `yaml:"delay_max"`
}

// DefaultPolicies returns the built-in limit table.
func DefaultPolicies() map[ActivityType]Policy {
	return map[ActivityType]Policy{
		ActivityInvitation: {
			Daily: 25, Weekly: 100, Recommended: 20,
			DelayMin: 30 * time.Second, DelayMax: 120 * time.Second,
		},
		ActivityProfileView: {
			Daily: 100, Recommended: 80,
			DelayMin: 10 * time.Second, DelayMax: 30 * time.Second,
		},
		ActivityComment: {
			Daily: 20, Recommended: 15,
			DelayMin: 60 * time.Second, DelayMax: 180 * time.Second,
		},
		ActivityLike: {
			Daily: 50, Recommended: 40,
			DelayMin: 15 * time.Second, DelayMax: 60 * time.Second,
		},
		ActivityMessage: {
			Daily: 40, Weekly: 200, Recommended: 30,
			DelayMin: 45 * time.Second, DelayMax: 150 * time.Second,
		},
		ActivitySearch: {
			Daily: 50, Recommended: 40,
			DelayMin: 5 * time.Second, DelayMax: 15 * time.Second,
		},
	}
}

// LoadPolicies reads YAML overrides from path and merges them over defaults.
// Only non-zero fields override. An empty path returns the defaults.
func LoadPolicies(path string) (map[ActivityType]Policy, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading limits file: %w", err)
	}

	var overrides map[ActivityType]Policy
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing limits file: %w", err)
	}

	for typ, ov := range overrides {
		base, ok := policies[typ]
		if !ok {
			return nil, fmt.Errorf("unknown activity type in limits file: %q", typ)
		}
		if ov.Daily > 0 {
			base.Daily = ov.Daily
		}
		if ov.Weekly > 0 {
			base.Weekly = ov.Weekly
		}
		if ov.Recommended > 0 {
			base.Recommended = ov.Recommended
		}
		if ov.DelayMin > 0 {
			base.DelayMin = ov.DelayMin
		}
		if ov.DelayMax > 0 {
			base.DelayMax = ov.DelayMax
		}
		policies[typ] = base
	}
	return policies, nil
}
