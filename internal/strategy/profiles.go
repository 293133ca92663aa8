package strategy

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mako/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ProfileDefinition is the per-strategy tuning block from the profiles file.
type ProfileDefinition struct {
	Name          string         `mapstructure:"-"`
	StopLossPct   float64        `mapstructure:"stop_loss_pct"`
	TakeProfitPct float64        `mapstructure:"take_profit_pct"`
	Params        map[string]any `mapstructure:"params"`
}

type profileFile struct {
	Profiles map[string]ProfileDefinition `mapstructure:"profiles"`
}

// ProfileSnapshot is a read-only copy handed to subscribers.
type ProfileSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]ProfileDefinition
}

// Profile returns the named definition, if present.
func (s ProfileSnapshot) Profile(name string) (ProfileDefinition, bool) {
	def, ok := s.Profiles[strings.ToLower(strings.TrimSpace(name))]
	return def, ok
}

// ChangeListener is called with a fresh snapshot after each reload.
type ChangeListener func(ProfileSnapshot)

// ProfileLoader reads strategy profiles from a yaml file and watches it for
// edits so tuning changes land without a restart.
type ProfileLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  ProfileSnapshot
	listeners []ChangeListener
}

func NewProfileLoader(path string) (*ProfileLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profiles failed: %w", err)
	}
	loader := &ProfileLoader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("profile reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

// Snapshot returns the current profiles as a deep copy.
func (l *ProfileLoader) Snapshot() ProfileSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers a listener and immediately delivers the current state.
func (l *ProfileLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go runListener(fn, snap)
}

func (l *ProfileLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go runListener(fn, snap)
	}
}

func runListener(fn ChangeListener, snap ProfileSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("profile listener panic: %v", r)
		}
	}()
	fn(snap)
}

func (l *ProfileLoader) reload() error {
	var fileCfg profileFile
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse profiles failed: %w", err)
	}
	normalized := make(map[string]ProfileDefinition, len(fileCfg.Profiles))
	for name, def := range fileCfg.Profiles {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		def.Name = key
		normalized[key] = def
	}
	l.mu.Lock()
	l.snapshot = ProfileSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: normalized,
	}
	l.mu.Unlock()
	logger.Infof("Loaded %d strategy profiles from %s", len(normalized), filepath.Base(l.path))
	return nil
}

func cloneSnapshot(in ProfileSnapshot) ProfileSnapshot {
	out := ProfileSnapshot{Version: in.Version, LoadedAt: in.LoadedAt}
	if in.Profiles == nil {
		return out
	}
	out.Profiles = make(map[string]ProfileDefinition, len(in.Profiles))
	for name, def := range in.Profiles {
		cloned := def
		if def.Params != nil {
			params := make(map[string]any, len(def.Params))
			for k, v := range def.Params {
				params[k] = v
			}
			cloned.Params = params
		}
		out.Profiles[name] = cloned
	}
	return out
}
