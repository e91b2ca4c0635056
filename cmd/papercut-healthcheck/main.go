package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/papercut-news/go-papercut/internal/nntpclient"
)

// papercut-healthcheck probes a running news server the way a reader
// would: LIST for the group roster, then GROUP and an XHDR subject sweep
// over every group. The exit code reflects health, for use from cron or a
// monitoring system.
func main() {
	var (
		host     = flag.String("host", "localhost", "NNTP server host")
		port     = flag.Int("port", 119, "NNTP server port")
		username = flag.String("username", "", "AUTHINFO username")
		password = flag.String("password", "", "AUTHINFO password")
		verbose  = flag.Bool("verbose", false, "Report every group, not just failures")
	)
	flag.Parse()

	client := nntpclient.New(nntpclient.Config{
		Host:     *host,
		Port:     *port,
		Username: *username,
		Password: *password,
	})
	if err := client.Connect(); err != nil {
		log.Fatalf("UNHEALTHY: connect: %v", err)
	}
	defer client.Close()

	lines, err := client.List()
	if err != nil {
		log.Fatalf("UNHEALTHY: LIST: %v", err)
	}

	failures := 0
	checked := 0
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			fmt.Fprintf(os.Stderr, "FAIL malformed LIST line: %q\n", line)
			failures++
			continue
		}
		name := fields[0]
		high, _ := strconv.Atoi(fields[1])

		group, err := client.Group(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL GROUP %s: %v\n", name, err)
			failures++
			continue
		}
		checked++

		if group.Count == 0 {
			if *verbose {
				fmt.Printf("ok   %s (empty)\n", name)
			}
			continue
		}
		subjects, err := client.XHdr("subject", group.First, group.Last)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL XHDR subject %s: %v\n", name, err)
			failures++
			continue
		}
		if *verbose {
			fmt.Printf("ok   %s (%d articles, %d subjects, high %d)\n",
				name, group.Count, len(subjects), high)
		}
	}

	if failures > 0 {
		log.Fatalf("UNHEALTHY: %d of %d group checks failed", failures, checked+failures)
	}
	fmt.Printf("HEALTHY: %d groups checked\n", checked)
}
