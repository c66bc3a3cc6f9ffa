package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/client"
	"bf16lut/pkg/core"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "lutgen server address")
	nReq := flag.Int("n", 5000, "Number of eval requests")
	start := flag.Float64("start", 0.25, "interval start")
	end := flag.Float64("end", 0.5, "interval end")
	bins := flag.Int("bins", 16, "number of LUT entries")
	policy := flag.String("policy", "geometric", "partition policy")
	flag.Parse()

	cli, err := client.Dial(*addr)
	if err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer cli.Close()

	fmt.Printf("lutgen Eval Benchmark (N=%d, server=%s)\n", *nReq, *addr)
	fmt.Println("---------------------------------------------------")

	res, err := cli.Generate(core.Request{Start: *start, End: *end, Bins: *bins, Policy: *policy})
	if err != nil {
		log.Fatalf("Generate failed: %v", err)
	}
	fmt.Printf(">> Table: %s %v, %d bins, worst %.4f ULP (cached=%v, %.1f ms)\n\n",
		res.Function, res.Interval, res.Bins, res.WorstUlp, res.Cached, res.LatencyMs)

	t, err := cli.Table()
	if err != nil {
		log.Fatalf("Table fetch failed: %v", err)
	}
	xs := bf16.Enumerate(t.Interval)
	if len(xs) == 0 {
		log.Fatalf("No bf16 inputs in %v", t.Interval)
	}

	fmt.Println(">> Remote eval (JSON over HTTP 1.1)...")
	var worst float64
	begin := time.Now()
	for i := 0; i < *nReq; i++ {
		ev, err := cli.Eval(xs[rand.Intn(len(xs))])
		if err != nil {
			log.Fatalf("Eval failed: %v", err)
		}
		if ev.Ulp > worst {
			worst = ev.Ulp
		}
	}
	remote := time.Since(begin)
	fmt.Printf("   HTTP Time: %v | QPS: %.0f | worst seen %.4f ULP\n\n", remote, float64(*nReq)/remote.Seconds(), worst)

	fmt.Println(">> Local formula lookup on the fetched table...")
	lut := t.LUT()
	begin = time.Now()
	var sink float64
	for i := 0; i < *nReq; i++ {
		sink += bf16.Quantize(lut.Predict(xs[rand.Intn(len(xs))]))
	}
	local := time.Since(begin)
	fmt.Printf("   Local Time: %v | QPS: %.0f\n", local, float64(*nReq)/local.Seconds())

	fmt.Println("---------------------------------------------------")
	fmt.Printf("Conclusion: local lookup is %.0fx faster than a round trip (checksum %.3g)\n",
		remote.Seconds()/local.Seconds(), sink)
}
