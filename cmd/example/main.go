package main

import (
	"fmt"
	"log"
	"math"
	"time"

	"bf16lut/pkg/client"
	"bf16lut/pkg/core"
)

func main() {
	fmt.Println("Connecting to lutgen server...")
	cli, err := client.Dial("localhost:8080")
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer cli.Close()

	req := core.Request{Start: 0.25, End: 0.5, Bins: 16, Policy: "geometric", Function: "exp2"}
	fmt.Printf("Generating: %s over [%g, %g], %d bins\n", req.Function, req.Start, req.End, req.Bins)
	start := time.Now()
	res, err := cli.Generate(req)
	if err != nil {
		log.Fatalf("Generate failed: %v", err)
	}
	fmt.Printf("Done in %v: worst %.4f ULP, average %.4f ULP (cached=%v)\n",
		time.Since(start), res.WorstUlp, res.AvgUlp, res.Cached)

	for _, x := range []float64{0.25, 0.3125, 0.375, 0.4375, 0.5} {
		ev, err := cli.Eval(x)
		if err != nil {
			log.Fatalf("Eval failed: %v", err)
		}
		fmt.Printf("exp2(%-6g) ~ %-10g (exact %.7f, bin %2d, %.4f ULP)\n",
			x, ev.Approx, math.Exp2(x), ev.Bin, ev.Ulp)
	}
}
