package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/utils/rpc"

	armscrub "github.com/KejiaChen/armscrub"
	"github.com/KejiaChen/armscrub/internal/config"
	"github.com/KejiaChen/armscrub/internal/creds"
	"github.com/KejiaChen/armscrub/scene"
	"github.com/KejiaChen/armscrub/trajectory"
)

func main() {
	logger := logging.NewLogger("armscrub")
	if err := newRootCommand(logger).Execute(); err != nil {
		logger.Fatal(err)
	}
}

// rootOptions holds the global flags and the resolved session config.
type rootOptions struct {
	logger     logging.Logger
	configPath string
	cfg        *config.Config
}

func newRootCommand(logger logging.Logger) *cobra.Command {
	opts := &rootOptions{logger: logger}

	cmd := &cobra.Command{
		Use:   "armscrub",
		Short: "Dual-arm trajectory scrubbing and TCP/scene visualization",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath == "" {
				cfg := config.Default()
				opts.cfg = &cfg
				return nil
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML session config")

	cmd.AddCommand(newScrubCommand(opts))
	cmd.AddCommand(newTCPCommand(opts))
	cmd.AddCommand(newSceneCommand(opts))
	cmd.AddCommand(newSTLCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))
	return cmd
}

// parseOptions converts the config's format section into parser options.
func parseOptions(cfg *config.Config) (trajectory.ParseOptions, error) {
	delim, err := trajectory.ParseDelimiter(cfg.Format.Delimiter)
	if err != nil {
		return trajectory.ParseOptions{}, err
	}
	unit, err := trajectory.ParseTimeUnit(cfg.Format.TimeUnit)
	if err != nil {
		return trajectory.ParseOptions{}, err
	}
	return trajectory.ParseOptions{
		Delimiter: delim,
		TimeUnit:  unit,
		HasHeader: cfg.Format.HasHeader,
		Degrees:   cfg.Format.Degrees,
	}, nil
}

func bindingConfig(cfg *config.Config) armscrub.BindingConfig {
	return armscrub.BindingConfig{
		BaseName:   cfg.Binding.BaseName,
		BoneName:   cfg.Binding.BoneName,
		StartIndex: cfg.Binding.StartIndex,
		Joints:     cfg.Binding.Joints,
		SuffixA:    cfg.Binding.SuffixA,
		SuffixB:    cfg.Binding.SuffixB,
	}
}

// connect dials the machine named by the config's credentials file.
func connect(ctx context.Context, cfg *config.Config, logger logging.Logger) (*client.RobotClient, error) {
	if cfg.Robot.CredsFile == "" {
		return nil, fmt.Errorf("robot.creds_file is not set in the config")
	}
	robotCreds, err := creds.Load(cfg.Robot.CredsFile)
	if err != nil {
		return nil, err
	}
	return client.New(
		ctx,
		robotCreds.Address,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			robotCreds.EntityID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: robotCreds.APIKey,
			})),
	)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfiguredArms loads arm A and/or B from the configured folders.
// At least one folder must be set.
func loadConfiguredArms(ctx context.Context, s *armscrub.Session, cfg *config.Config) error {
	popts, err := parseOptions(cfg)
	if err != nil {
		return err
	}
	if cfg.Paths.Filename == "" {
		return fmt.Errorf("paths.filename is not set")
	}
	loaded := 0
	if cfg.Paths.FolderA != "" {
		if err := s.LoadArm(ctx, armscrub.ArmA, filepath.Join(cfg.Paths.FolderA, cfg.Paths.Filename), popts); err != nil {
			return err
		}
		loaded++
	}
	if cfg.Paths.FolderB != "" {
		if err := s.LoadArm(ctx, armscrub.ArmB, filepath.Join(cfg.Paths.FolderB, cfg.Paths.Filename), popts); err != nil {
			return err
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("neither paths.folder_a nor paths.folder_b is set")
	}
	return nil
}

func newScrubCommand(opts *rootOptions) *cobra.Command {
	var (
		at     float64
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "scrub",
		Short: "Load the configured trajectories and scrub the rig",
		Long: "Loads arm A/B trajectories from the configured folders and applies scrub\n" +
			"positions to the rig. With --at, applies a single fraction and exits;\n" +
			"otherwise reads fractions in [0,1] from stdin, one per line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			var rig armscrub.Rig
			if dryRun {
				rig = &armscrub.LogRig{Printf: opts.logger.Infof}
			} else {
				machine, err := connect(ctx, opts.cfg, opts.logger)
				if err != nil {
					return err
				}
				defer machine.Close(context.Background())
				opts.logger.Info("Connected to robot")
				rig = armscrub.NewServoRig(machine)
			}

			s := armscrub.NewSession(rig, armscrub.NewVizSink(opts.logger), opts.logger)
			s.Binding = bindingConfig(opts.cfg)
			if err := loadConfiguredArms(ctx, s, opts.cfg); err != nil {
				return err
			}

			t0, t1 := s.TimeRange()
			opts.logger.Infof("Union time range: [%.3f, %.3f]s", t0, t1)

			if cmd.Flags().Changed("at") {
				s.SetScrub(ctx, at)
				opts.logger.Infof("Scrub %.3f -> t=%.4fs", s.Scrub(), s.Time())
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				frac, err := strconv.ParseFloat(line, 64)
				if err != nil {
					opts.logger.Warnf("Not a scrub fraction: %q", line)
					continue
				}
				s.SetScrub(ctx, frac)
				opts.logger.Infof("Scrub %.3f -> t=%.4fs", s.Scrub(), s.Time())
			}
			return scanner.Err()
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "apply a single scrub fraction in [0,1] and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log joint assignments instead of driving hardware")
	return cmd
}

func newTCPCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcp",
		Short: "TCP marker visualization",
	}
	cmd.AddCommand(newTCPDrawCommand(opts))
	cmd.AddCommand(newTCPClearCommand(opts))
	return cmd
}

// vizSession builds a viz-backed session for marker and scene commands.
func vizSession(opts *rootOptions) *armscrub.Session {
	s := armscrub.NewSession(&armscrub.LogRig{}, armscrub.NewVizSink(opts.logger), opts.logger)
	s.Binding = bindingConfig(opts.cfg)
	return s
}

func armByName(which string) (armscrub.Arm, error) {
	switch strings.ToUpper(which) {
	case "A":
		return armscrub.ArmA, nil
	case "B":
		return armscrub.ArmB, nil
	default:
		return "", fmt.Errorf("unknown arm %q (want A or B)", which)
	}
}

func newTCPDrawCommand(opts *rootOptions) *cobra.Command {
	var which string
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Scatter TCP markers for one arm into the visualizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			arm, err := armByName(which)
			if err != nil {
				return err
			}
			folder := cfg.Paths.FolderA
			yOffset := cfg.TCP.YOffsetA
			if arm == armscrub.ArmB {
				folder = cfg.Paths.FolderB
				yOffset = cfg.TCP.YOffsetB
			}
			if folder == "" || cfg.Paths.TCPFilename == "" {
				return fmt.Errorf("set the arm %s folder and paths.tcp_filename first", arm)
			}

			delim, err := trajectory.ParseDelimiter(cfg.Format.Delimiter)
			if err != nil {
				return err
			}
			order := trajectory.RowMajor
			if cfg.TCP.ColumnMajor {
				order = trajectory.ColumnMajor
			}

			s := vizSession(opts)
			n, err := s.VisualizeTCP(arm,
				filepath.Join(folder, cfg.Paths.TCPFilename),
				trajectory.TCPOptions{
					Delimiter: delim,
					HasHeader: cfg.Format.HasHeader,
					Order:     order,
				},
				armscrub.MarkerOptions{
					Radius:   cfg.TCP.Radius,
					Step:     cfg.TCP.Step,
					Material: cfg.TCP.Material,
					YOffset:  yOffset,
				})
			if err != nil {
				return err
			}
			opts.logger.Infof("Plotted %d TCP point(s) for arm %s", n, arm)
			return nil
		},
	}
	cmd.Flags().StringVar(&which, "arm", "A", "arm to draw (A or B)")
	return cmd
}

func newTCPClearCommand(opts *rootOptions) *cobra.Command {
	var which string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear TCP markers for one arm",
		RunE: func(cmd *cobra.Command, args []string) error {
			arm, err := armByName(which)
			if err != nil {
				return err
			}
			return vizSession(opts).ClearTCP(arm)
		},
	}
	cmd.Flags().StringVar(&which, "arm", "A", "arm to clear (A or B)")
	return cmd
}

func newSceneCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "MoveIt .scene import and conversion",
	}
	cmd.AddCommand(newSceneImportCommand(opts))
	cmd.AddCommand(newSceneConvertCommand(opts))
	return cmd
}

func newSceneImportCommand(opts *rootOptions) *cobra.Command {
	var (
		material string
		exportTo string
	)
	cmd := &cobra.Command{
		Use:   "import <file.scene>",
		Short: "Spawn the boxes of a .scene file in the visualizer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := vizSession(opts)
			n, err := s.ImportScene(args[0], material)
			if err != nil {
				return err
			}
			opts.logger.Infof("Imported %d box(es)", n)
			if exportTo != "" {
				if _, err := s.ExportScene(exportTo); err != nil {
					return err
				}
				opts.logger.Infof("Re-exported scene to %s", exportTo)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&material, "material", "", "material for spawned boxes")
	cmd.Flags().StringVar(&exportTo, "export", "", "re-export the imported objects to this path")
	return cmd
}

func newSceneConvertCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in.scene> <out.scene>",
		Short: "Parse a .scene file and rewrite it canonically",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			objs, err := scene.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := scene.WriteFile(args[1], objs); err != nil {
				return err
			}
			opts.logger.Infof("Rewrote %d entr(ies) to %s", len(objs), args[1])
			return nil
		},
	}
}

func newSTLCommand(opts *rootOptions) *cobra.Command {
	var scenePath string
	cmd := &cobra.Command{
		Use:   "stl <out-dir>",
		Short: "Export the objects of a .scene file as STL meshes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if scenePath == "" {
				return fmt.Errorf("--scene is required")
			}
			s := vizSession(opts)
			if _, err := s.ImportScene(scenePath, ""); err != nil {
				return err
			}
			return s.ExportSTL(args[0])
		},
	}
	cmd.Flags().StringVar(&scenePath, "scene", "", "scene file naming the objects to export")
	return cmd
}

func newReplayCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the configured trajectories on a live machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			cfg := opts.cfg

			machine, err := connect(ctx, cfg, opts.logger)
			if err != nil {
				return err
			}
			defer machine.Close(context.Background())
			opts.logger.Info("Connected to robot")

			motionSvc, err := motion.FromProvider(machine, "builtin")
			if err != nil {
				return fmt.Errorf("motion service: %w", err)
			}
			replayer := armscrub.NewReplayer(motionSvc, opts.logger)
			replayer.PlansDir = cfg.Robot.PlansDir

			popts, err := parseOptions(cfg)
			if err != nil {
				return err
			}

			replays := []struct {
				folder, component string
				arm               armscrub.Arm
			}{
				{cfg.Paths.FolderA, cfg.Robot.ArmA, armscrub.ArmA},
				{cfg.Paths.FolderB, cfg.Robot.ArmB, armscrub.ArmB},
			}
			ran := 0
			for _, rp := range replays {
				if rp.folder == "" || rp.component == "" {
					continue
				}
				traj, err := trajectory.ParseFile(filepath.Join(rp.folder, cfg.Paths.Filename), popts)
				if err != nil {
					return fmt.Errorf("arm %s: %w", rp.arm, err)
				}
				opts.logger.Infof("=== Replaying arm %s on %s (%d samples) ===", rp.arm, rp.component, traj.Len())
				if err := replayer.ReplayArm(ctx, rp.component, traj); err != nil {
					return err
				}
				ran++
			}
			if ran == 0 {
				return fmt.Errorf("nothing to replay: set paths.folder_a/b and robot.arm_a/b")
			}
			opts.logger.Info("Replay completed")
			return nil
		},
	}
}
