package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fnothaft/cgcloud/internal/cloud/awscloud"
	"github.com/fnothaft/cgcloud/internal/common"
	"github.com/fnothaft/cgcloud/internal/prometheus"
)

const configFile = "/etc/cgcloud/cgcloud.toml"

var (
	configPath  string
	logLevel    string
	metricsFile string
	slaves      int

	config *cgcloudConfig
)

var rootCmd = &cobra.Command{
	Use:           "cgcloud",
	Short:         "Provision and bootstrap EC2 boxes and Spark clusters",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = parseConfig(configPath)
		if err != nil {
			return fmt.Errorf("cannot load configuration: %w", err)
		}
		if logLevel != "" {
			config.LogLevel = logLevel
		}
		return common.ConfigureLogging(config.LogLevel, config.Journal)
	},
}

func newAWS(ctx context.Context) (*awscloud.AWS, error) {
	region := config.Region
	if region == "" {
		var err error
		region, err = awscloud.RegionFromInstanceMetadata(ctx)
		if err != nil {
			return nil, fmt.Errorf("no region configured and none found in instance metadata: %w", err)
		}
		config.Region = region
	}
	if config.Credentials != "" {
		logrus.Infof("Using AWS credentials from %s", config.Credentials)
		return awscloud.NewFromFile(config.Credentials, region)
	}
	return awscloud.NewDefault(region)
}

func launcherFor(ctx context.Context) (*launcher, error) {
	aws, err := newAWS(ctx)
	if err != nil {
		return nil, err
	}
	return newLauncher(config, aws), nil
}

var selectImageCmd = &cobra.Command{
	Use:   "select-image <role>",
	Short: "Print the base image instances of a role are launched from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := launcherFor(cmd.Context())
		if err != nil {
			return err
		}
		img, err := l.selectImage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", img.ImageID, img.Name)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <role>",
	Short: "Launch and set up a box",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := launcherFor(cmd.Context())
		if err != nil {
			return err
		}
		inst, err := l.create(cmd.Context(), args[0], nil)
		if err != nil {
			if inst != nil {
				logrus.Errorf("Instance %s was launched but is unusable, terminate it", inst.ID)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), inst.ID)
		return nil
	},
}

var createClusterCmd = &cobra.Command{
	Use:   "create-cluster <cluster>",
	Short: "Launch a master and its slaves concurrently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := launcherFor(cmd.Context())
		if err != nil {
			return err
		}
		ids, err := l.createCluster(cmd.Context(), args[0], slaves)
		for _, id := range ids {
			if id != "" {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		}
		return err
	},
}

var sshCmd = &cobra.Command{
	Use:   "ssh <instance-id> -- <command>",
	Short: "Run a command on a box as its login account",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := launcherFor(cmd.Context())
		if err != nil {
			return err
		}
		res, err := l.run(cmd.Context(), args[0], strings.Join(args[1:], " "))
		fmt.Fprint(cmd.OutOrStdout(), res.Output)
		return err
	},
}

var waitClusterCmd = &cobra.Command{
	Use:   "wait-cluster <cluster>",
	Short: "Wait until the master of a cluster sees all slaves",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := launcherFor(cmd.Context())
		if err != nil {
			return err
		}
		return l.waitCluster(cmd.Context(), args[0], slaves)
	},
}

var terminateCmd = &cobra.Command{
	Use:   "terminate <instance-id>...",
	Short: "Terminate instances",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := launcherFor(cmd.Context())
		if err != nil {
			return err
		}
		return l.cloud.TerminateInstances(cmd.Context(), args...)
	},
}

var terminateClusterCmd = &cobra.Command{
	Use:   "terminate-cluster <cluster>",
	Short: "Terminate every instance of a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := launcherFor(cmd.Context())
		if err != nil {
			return err
		}
		ids, err := l.terminateCluster(cmd.Context(), args[0])
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), common.VersionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configFile, "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the configuration")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write provisioning metrics to this file on exit")
	common.PanicOnError(rootCmd.MarkPersistentFlagFilename("config", "toml"))

	createClusterCmd.Flags().IntVarP(&slaves, "slaves", "s", 1, "number of slaves")
	waitClusterCmd.Flags().IntVarP(&slaves, "slaves", "s", 1, "number of slaves")

	rootCmd.AddCommand(
		selectImageCmd,
		createCmd,
		createClusterCmd,
		sshCmd,
		waitClusterCmd,
		terminateCmd,
		terminateClusterCmd,
		versionCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if metricsFile != "" {
		if werr := prometheus.WriteTextfile(metricsFile); werr != nil {
			logrus.Errorf("Cannot write metrics to %s: %v", metricsFile, werr)
		}
	}
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
