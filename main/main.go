package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	armscrub "github.com/KejiaChen/armscrub"
	"github.com/KejiaChen/armscrub/internal/creds"
	"github.com/KejiaChen/armscrub/trajectory"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/utils/rpc"
)

func main() {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file")
	fileA := flag.String("file-a", "", "trajectory file for arm A")
	fileB := flag.String("file-b", "", "trajectory file for arm B")
	armA := flag.String("arm-a", "arm_a", "component name of arm A")
	armB := flag.String("arm-b", "arm_b", "component name of arm B")
	plansDir := flag.String("plans-dir", "", "directory for cached trajectory plans (optional)")
	flag.Parse()

	logger := logging.NewDebugLogger("armscrub")

	if *credsPath == "" {
		logger.Fatal("-creds flag is required")
	}
	if *fileA == "" && *fileB == "" {
		logger.Fatal("at least one of -file-a or -file-b is required")
	}
	robotCreds, err := creds.Load(*credsPath)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	machine, err := client.New(
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
	if err != nil {
		logger.Fatal(err)
	}
	defer machine.Close(context.Background())

	logger.Info("Connected to robot")
	logger.Info("Resources:", machine.ResourceNames())

	motionSvc, err := motion.FromProvider(machine, "builtin")
	if err != nil {
		logger.Fatal(err)
	}
	replayer := armscrub.NewReplayer(motionSvc, logger)
	replayer.PlansDir = *plansDir

	for _, rp := range []struct{ file, component string }{
		{*fileA, *armA},
		{*fileB, *armB},
	} {
		if rp.file == "" {
			continue
		}
		traj, err := trajectory.ParseFile(rp.file, trajectory.ParseOptions{})
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infof("=== Replaying %s on %s (%d samples) ===", rp.file, rp.component, traj.Len())
		if err := replayer.ReplayArm(ctx, rp.component, traj); err != nil {
			logger.Fatal(err)
		}
	}
	logger.Info("Replay completed")
}
