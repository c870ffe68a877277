package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/logger"
	"ws-class-server/pkg/server"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to the yaml config file",
		EnvVars: []string{"CLASS_CONFIG_FILE"},
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "yaml config body, used instead of --config",
		EnvVars: []string{"CLASS_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "env-file",
		Usage: "dotenv file loaded before the config is read",
		Value: ".env",
	},
	&cli.UintFlag{
		Name:    "port",
		Usage:   "port to serve signaling on",
		EnvVars: []string{"PORT"},
	},
	&cli.StringFlag{
		Name:  "bind",
		Usage: "address to bind the signaling listener to",
	},
	&cli.StringFlag{
		Name:  "database-url",
		Usage: "postgres url of the class directory",
	},
	&cli.StringFlag{
		Name:  "redis-address",
		Usage: "host:port of the redis server holding whiteboards",
	},
	&cli.StringFlag{
		Name:  "node-ip",
		Usage: "IP address announced in ICE candidates",
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "development logging at debug level",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

func main() {
	app := &cli.App{
		Name:        "ws-class-server",
		Usage:       "live class signaling server",
		Description: "run without subcommands to start the server",
		Flags:       baseFlags,
		Action:      startServer,
		Commands: []*cli.Command{
			{
				Name:   "check-config",
				Usage:  "validates the configuration and prints it",
				Action: checkConfig,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return nil, err
	}
	confString, err := getConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}
	return config.NewConfig(confString, !c.Bool("disable-strict-config"), c)
}

func getConfigString(configFile string, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}
	outConfigBody, err := os.ReadFile(configFile)
	if err != nil {
		return "", err
	}
	return string(outConfigBody), nil
}

func startServer(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	log, err := logger.New(conf.LogLevel, conf.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	s, err := server.Build(ctx, conf, log)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func checkConfig(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	fmt.Printf("listening on %s, rtc ports %d-%d, %d codecs\n",
		conf.ListenAddress(), conf.RTC.PortRangeStart, conf.RTC.PortRangeEnd, len(conf.RTC.Codecs))
	return nil
}
