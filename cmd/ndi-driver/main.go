package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ndi-tracker/ndi-driver/pkg/driver"
	"github.com/ndi-tracker/ndi-driver/pkg/ndiserial"
	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
)

var (
	serialPort     = flag.String("serial-port", "", "Serial device path; empty triggers discovery")
	redisAddr      = flag.String("redis-addr", "localhost:6379", "Redis server address")
	redisPass      = flag.String("redis-pass", "", "Redis password")
	redisDB        = flag.Int("redis-db", 0, "Redis database number")
	tickMS         = flag.Int("tick-period-ms", 20, "Tracking tick period in milliseconds")
	definitionPath = flag.String("definition-path", "", "Comma-separated ordered list of directories searched for non-absolute tool definition files")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting NDI tracker driver")
	log.Printf("Serial port: %q", *serialPort)
	log.Printf("Redis address: %s", *redisAddr)

	redisClient, err := driver.NewRedisClient(*redisAddr, *redisPass, *redisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Printf("Connected to Redis")

	var defDirs []string
	if *definitionPath != "" {
		defDirs = strings.Split(*definitionPath, ",")
	}

	cfg := driver.Config{
		SerialPort:     *serialPort,
		RedisAddr:      *redisAddr,
		RedisPassword:  *redisPass,
		RedisDB:        *redisDB,
		TickPeriodMS:   *tickMS,
		DefinitionPath: defDirs,
	}

	opener := func(name string, lcfg ndiwire.LinkConfig) (ndiwire.Link, error) {
		return ndiserial.Open(name, lcfg)
	}

	d := driver.New(cfg, redisClient, ndiserial.Candidates, opener)

	ctx, cancel := context.WithCancel(context.Background())
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- d.Run(ctx) }()

	go d.WatchRedisCommands()

	go func() {
		if err := d.Connect(*serialPort); err != nil {
			log.Printf("Initial connect failed: %v", err)
			return
		}
		if err := d.ToggleTracking(true); err != nil {
			log.Printf("Failed to start tracking: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Printf("Shutting down...")
		cancel()
		<-runErrCh
	case err := <-runErrCh:
		if err != nil {
			log.Printf("Driver loop exited: %v", err)
		}
	}

	d.Stop()
	d.Disconnect()
}
