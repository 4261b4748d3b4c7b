package main

import "time"

type benchConfig struct {
	Endpoint string        `env:"BENCH_ENDPOINT" envDefault:"http://localhost:8080/parse-bill"`
	DataDir  string        `env:"BENCH_DATA_DIR" envDefault:"./data"`
	Timeout  time.Duration `env:"BENCH_TIMEOUT" envDefault:"2m"`
}

type BenchResult struct {
	File     string
	Format   string
	Duration time.Duration
	Items    int
	Err      error
	Size     int64
}

type Agg struct {
	Count      int
	Failed     int
	Total      time.Duration
	TotalBytes int64
}
