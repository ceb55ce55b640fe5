package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/nufs-go/nufs/internal/nufs"
)

func main() {
	app := cli.App{
		Usage: "Create a nufs disk image",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create or wipe a nufs image file",
				Action:    formatImage,
				ArgsUsage: "IMAGE_FILE",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "blocks",
						Usage: "total number of 4096-byte blocks in the image",
						Value: 1024,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func formatImage(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one argument: IMAGE_FILE", 1)
	}
	path := c.Args().Get(0)
	blocks := c.Int("blocks")

	if err := nufs.Format(path, blocks); err != nil {
		return cli.Exit(fmt.Sprintf("format failed: %s", err), 1)
	}

	fmt.Printf("formatted %s with %d blocks\n", path, blocks)
	return nil
}
