package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"coredb/internal/catalog"
	"coredb/internal/config"
	"coredb/internal/engine"
	"coredb/internal/logging"
	"coredb/internal/sql/exec"
	"coredb/internal/sql/parser"
)

func main() {
	dataFile := flag.String("data", "coredb.data", "path to the data file")
	prod := flag.Bool("prod", false, "use production (JSON) logging instead of console")
	flag.Parse()

	var log = logging.New()
	if *prod {
		log = logging.NewProduction()
	}
	defer log.Sync()

	cfg := config.Default(*dataFile)
	eng, err := engine.Open(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	cat, err := catalog.New(eng, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open catalog: %v\n", err)
		os.Exit(1)
	}
	x := exec.New(eng, cat, log)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db> ")

		if !scanner.Scan() { // Ctrl+D pressed
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}

		stmt, err := parser.Parse(line)
		if err != nil {
			fmt.Printf("parse error: %v\n", err)
			continue
		}

		result, err := x.Execute(stmt)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func printResult(r *exec.Result) {
	if r.Columns == nil {
		fmt.Println(r.Message)
		return
	}
	fmt.Println(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprintf("%v", v)
		}
		fmt.Println(strings.Join(parts, " | "))
	}
	fmt.Printf("(%d row(s))\n", len(r.Rows))
}
