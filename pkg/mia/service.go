package mia

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"mia-go/pkg/api"
	"mia-go/pkg/executor"
	"mia-go/pkg/lifecycle"
	"mia-go/pkg/log"
	"mia-go/pkg/management"
	"mia-go/pkg/router"
	"mia-go/pkg/stats"
)

// AppName names the daemon for the log database and the management
// socket.
const AppName = "mia"

// Service is the assembled adapter process.
type Service struct {
	cfg      *Config
	exec     *executor.Executor
	counters *stats.Counters
	lc       *lifecycle.Lifecycle
	rt       *router.Router
	mgmt     *management.Server
	api      *api.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService builds the full adapter from static configuration. The
// logger must already be initialized.
func NewService(cfg *Config) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		exec:     executor.New(),
		counters: &stats.Counters{},
	}
	s.lc = lifecycle.New(s.logStats, s.applyDefaults)
	log.SetFaultHandler(s.lc.Fault)

	cpDest, err := ResolveDest(cfg.CPVMWDestAddress)
	if err != nil {
		return nil, err
	}
	dpDest, err := ResolveDest(cfg.DPVMWDestAddress)
	if err != nil {
		return nil, err
	}
	kbaDest, err := ResolveDest(cfg.KBADestAddress)
	if err != nil {
		return nil, err
	}
	mdDest, err := ResolveDest(cfg.MDDestAddress)
	if err != nil {
		return nil, err
	}
	tpnDest, err := ResolveDest(cfg.TPNDestAddress)
	if err != nil {
		return nil, err
	}

	s.rt, err = router.New(router.Params{
		TPNListen:     cfg.TPNListenAddress,
		VMWListen:     cfg.VMWListenAddress,
		KBAListen:     cfg.KBAListenAddress,
		MDListen:      cfg.MDListenAddress,
		SokfListen:    cfg.SokfListenAddress,
		CPDest:        cpDest,
		DPDest:        dpDest,
		KBADest:       kbaDest,
		MDDest:        mdDest,
		TPNDest:       tpnDest,
		HPLNodeID:     cfg.HPLNodeID,
		MDNodeID:      cfg.MDNodeID,
		TPNNodeID:     cfg.TPNNodeID,
		BypassTPN:     cfg.BypassSet(),
		DefaultDelay:  cfg.ItmDelay,
		QOSForITEData: cfg.MPLSQOSForITE,
		UDPChecksum:   cfg.UDPChecksum,
		DropSeed:      cfg.DropSeed,
		Exec:          s.exec,
		Log:           log.Logger(),
		Counters:      s.counters,
	})
	if err != nil {
		return nil, err
	}

	s.mgmt = management.NewServer(AppName, cfg.MgmtPassword)
	s.mgmt.RegisterHandler("stats", "Show routing counters as JSON", s.handleStatsCommand)
	s.mgmt.RegisterHandler("routes", "Show dynamic routing configuration as JSON", s.handleRoutesCommand)
	s.mgmt.RegisterHandler("config", "Apply dynamic config. Usage: config key=value ...", s.handleConfigCommand)
	s.mgmt.RegisterHandler("config-defaults", "Reset dynamic config to startup values", s.handleConfigDefaultsCommand)

	if cfg.APIListenAddress != "" {
		s.api = api.NewServer(cfg.APIListenAddress, s.rt, s.counters)
	}
	return s, nil
}

// Run starts everything and blocks until shutdown, returning the
// process exit code.
func (s *Service) Run() int {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.exec.Run(ctx)
	}()

	s.rt.Start()
	if err := s.mgmt.Start(); err != nil {
		log.Error().Err(err).Msg("management server failed to start")
	}
	if s.api != nil {
		go func() {
			if err := s.api.Run(); err != nil {
				log.Info().Err(err).Msg("api server stopped")
			}
		}()
	}

	log.Info().Msg("mission interface adapter running")
	code := s.lc.Wait()

	s.rt.Close()
	if s.api != nil {
		s.api.Shutdown()
	}
	s.mgmt.Stop()
	cancel()
	s.wg.Wait()
	log.Info().Int("exit_code", code).Msg("mission interface adapter stopped")
	return code
}

// Shutdown requests a clean stop from another goroutine.
func (s *Service) Shutdown() { s.lc.Shutdown() }

// logStats runs on SIGUSR1.
func (s *Service) logStats() {
	snap := s.counters.Snapshot()
	b, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("stats snapshot failed")
		return
	}
	log.Info().RawJSON("stats", b).Msg("stats snapshot")
}

// applyDefaults runs on SIGUSR2.
func (s *Service) applyDefaults() {
	s.rt.ApplyConfigDefaults()
}

// --- Management command handlers ---

func (s *Service) handleStatsCommand(args []string) (string, error) {
	b, err := json.MarshalIndent(s.counters.Snapshot(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Service) handleRoutesCommand(args []string) (string, error) {
	b, err := json.MarshalIndent(s.rt.RoutesSnapshot(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Service) handleConfigDefaultsCommand(args []string) (string, error) {
	s.rt.ApplyConfigDefaults()
	return "OK: defaults applied", nil
}

// handleConfigCommand parses key=value tokens into a partial config
// change. Recognized keys: udp_checksum=<bool>, itm_delay=<frames>,
// route_delay=<sv>:<sim>:<frames>, to_sim_drop=<pt>:<alg>:<interval>,
// to_sv_drop=<pt>:<alg>:<interval>.
func (s *Service) handleConfigCommand(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("config needs at least one key=value argument")
	}
	change, err := ParseConfigChange(args)
	if err != nil {
		return "", err
	}
	s.rt.ApplyConfig(change)
	return "OK: config applied", nil
}

// ParseConfigChange converts key=value tokens into a router config
// change.
func ParseConfigChange(args []string) (router.ConfigChange, error) {
	var change router.ConfigChange
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			return change, fmt.Errorf("malformed argument %q, want key=value", arg)
		}
		switch key {
		case "udp_checksum":
			v, err := strconv.ParseBool(value)
			if err != nil {
				return change, fmt.Errorf("udp_checksum: %w", err)
			}
			change.UDPChecksum = &v
		case "itm_delay":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return change, fmt.Errorf("itm_delay: %w", err)
			}
			frames := uint32(v)
			change.ItmDelay = &frames
		case "route_delay":
			parts := strings.Split(value, ":")
			if len(parts) != 3 {
				return change, fmt.Errorf("route_delay: want <sv>:<sim>:<frames>, got %q", value)
			}
			sv, err := strconv.ParseUint(parts[0], 10, 8)
			if err != nil {
				return change, fmt.Errorf("route_delay sv node: %w", err)
			}
			sim, err := strconv.ParseUint(parts[1], 10, 8)
			if err != nil {
				return change, fmt.Errorf("route_delay sim node: %w", err)
			}
			frames, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil {
				return change, fmt.Errorf("route_delay frames: %w", err)
			}
			change.RouteDelay = append(change.RouteDelay, router.RouteDelay{
				SvNode:  uint8(sv),
				SimNode: uint8(sim),
				Delay:   uint32(frames),
			})
		case "to_sim_drop", "to_sv_drop":
			parts := strings.Split(value, ":")
			if len(parts) != 3 {
				return change, fmt.Errorf("%s: want <pt>:<algorithm>:<interval>, got %q", key, value)
			}
			pt, err := strconv.ParseUint(parts[0], 10, 8)
			if err != nil {
				return change, fmt.Errorf("%s payload type: %w", key, err)
			}
			interval, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil {
				return change, fmt.Errorf("%s interval: %w", key, err)
			}
			rule := router.DropRule{
				PayloadType: uint8(pt),
				Algorithm:   parts[1],
				Interval:    uint32(interval),
			}
			if key == "to_sim_drop" {
				change.ToSimDrop = append(change.ToSimDrop, rule)
			} else {
				change.ToSvDrop = append(change.ToSvDrop, rule)
			}
		default:
			return change, fmt.Errorf("unknown config key %q", key)
		}
	}
	return change, nil
}
