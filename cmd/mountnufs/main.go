package main

import (
	"fmt"
	"log"
	"os"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/urfave/cli/v2"

	"github.com/nufs-go/nufs/internal/fuseadapter"
	"github.com/nufs-go/nufs/internal/nufs"
)

func main() {
	app := cli.App{
		Usage:     "Mount a nufs image as a FUSE filesystem",
		ArgsUsage: "IMAGE_FILE MOUNTPOINT",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "log every FUSE call"},
		},
		Action: mount,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func mount(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("expected exactly two arguments: IMAGE_FILE MOUNTPOINT", 1)
	}
	imagePath := c.Args().Get(0)
	mountPoint := c.Args().Get(1)

	store, err := nufs.Open(imagePath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening image: %s", err), 1)
	}
	defer store.Close()

	root := fuseadapter.Root(store)
	server, err := gofs.Mount(mountPoint, root, &gofs.Options{
		MountOptions: fuse.MountOptions{Debug: c.Bool("debug")},
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("mounting at %s: %s", mountPoint, err), 1)
	}

	fmt.Printf("mounted %s at %s\n", imagePath, mountPoint)
	server.Wait()
	return nil
}
