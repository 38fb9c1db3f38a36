package main

import (
	"flag"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/MikhailRaia/files-sharing/internal/app"
	"github.com/MikhailRaia/files-sharing/internal/config"
	"github.com/MikhailRaia/files-sharing/internal/logger"
	"github.com/rs/zerolog/log"
)

var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err == nil {
		runtime.GC()
		pprof.WriteHeapProfile(f)
		_ = f.Close()
	}
}

func main() {
	cfg := config.NewConfig()

	logger.InitLogger(cfg.LogLevel)

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := application.Run(); err != nil {
		if *memprofile != "" {
			writeHeapProfile(*memprofile)
		}
		log.Fatal().Err(err).Msg("Error running application")
	}

	if *memprofile != "" {
		writeHeapProfile(*memprofile)
	}
}
