// Command dumpguide downloads the provider's guide document and reports what
// the parser makes of it. Useful when a provider's EPG looks wrong in the app.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"prismcast/config"
	"prismcast/services/epg"
	"prismcast/services/provider"
)

func main() {
	var (
		configPath = flag.String("config", "cache/settings.json", "Path to settings.json")
		outPath    = flag.String("out", "", "Write the raw XMLTV document to this file")
		channel    = flag.String("channel", "", "Print the schedule for one guide channel id")
	)
	flag.Parse()

	settings, err := config.NewManager(*configPath).Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	if settings.Provider.BaseURL == "" {
		log.Fatal("no provider configured in settings")
	}

	client := provider.New(settings.Provider.BaseURL, settings.Provider.Username, settings.Provider.Password)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	started := time.Now()
	data, err := client.DownloadGuide(ctx)
	if err != nil {
		log.Fatalf("download guide: %v", err)
	}
	fmt.Printf("downloaded %d bytes in %s\n", len(data), time.Since(started).Round(time.Millisecond))

	if *outPath != "" {
		if err := os.WriteFile(*outPath, data, 0o644); err != nil {
			log.Fatalf("write %s: %v", *outPath, err)
		}
		fmt.Printf("raw document written to %s\n", *outPath)
	}

	if !epg.IsValidDocument(data) {
		log.Fatal("document does not look like XMLTV")
	}

	snap := epg.Parse(data, client.GuideURL())
	fmt.Printf("parsed %d channels, %d programs\n", len(snap.Channels), snap.CountPrograms())

	if *channel != "" {
		programs := snap.ProgramsFor(*channel)
		if len(programs) == 0 {
			fmt.Printf("no programs for channel %q\n", *channel)
			return
		}
		for _, p := range programs {
			fmt.Printf("%s - %s  %s\n",
				p.Start.Format("2006-01-02 15:04"), p.Stop.Format("15:04"), p.Title)
		}
	}
}
