package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// ChainSet is the current chain list, replaced atomically on config reload.
type ChainSet struct {
	chains atomic.Pointer[[]ChainConfig]
}

func NewChainSet(chains []ChainConfig) *ChainSet {
	s := &ChainSet{}
	s.Replace(chains)
	return s
}

// Replace swaps in a new chain list.
func (s *ChainSet) Replace(chains []ChainConfig) {
	cp := append([]ChainConfig(nil), chains...)
	s.chains.Store(&cp)
}

// All returns every configured chain.
func (s *ChainSet) All() []ChainConfig {
	p := s.chains.Load()
	if p == nil {
		return nil
	}
	return append([]ChainConfig(nil), (*p)...)
}

// Enabled returns the chains with enabled set.
func (s *ChainSet) Enabled() []ChainConfig {
	all := s.All()
	out := make([]ChainConfig, 0, len(all))
	for _, chain := range all {
		if chain.Enabled {
			out = append(out, chain)
		}
	}
	return out
}

// Watch re-reads the config file whenever it changes and passes the new
// Config to onChange. Invalid reloads are logged and ignored. It reports
// false when no config file is in use.
func Watch(cfgFile string, flags *pflag.FlagSet, logger *zap.Logger, onChange func(Config)) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return false, err
	}
	if v.ConfigFileUsed() == "" {
		return false, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := fromViper(v)
		if err != nil {
			logger.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name), zap.Int("chains", len(cfg.Chains)))
		onChange(cfg)
	})
	v.WatchConfig()
	return true, nil
}
