package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/registry"
)

type prompt struct {
	client    *registry.Client
	sharedDir string
	in        <-chan string
	out       io.Writer
}

func (p *prompt) run(ctx context.Context) error {
	for {
		fmt.Fprint(p.out, "Enter a command: ")
		line, ok := p.readLine(ctx)
		if !ok {
			return ctx.Err()
		}

		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "":
		case "JOIN":
			p.report(ctx, p.client.Join())
		case "PUBLISH":
			p.publish(ctx)
		case "SEARCH":
			p.search(ctx)
		case "FETCH":
			p.fetch(ctx)
		case "EXIT":
			return nil
		default:
			fmt.Fprintln(p.out, "Unknown command. Use JOIN, PUBLISH, SEARCH, FETCH, EXIT.")
		}
	}
}

func (p *prompt) publish(ctx context.Context) {
	files, err := registry.ListShared(p.sharedDir)
	if err != nil {
		fmt.Fprintf(p.out, "Warning: shared directory %q can't be read, publishing no files.\n", p.sharedDir)
		logger.Get(ctx).Warn("Listing shared files failed", zap.Error(err))
	}

	dropped, err := p.client.Publish(files)
	for _, f := range dropped {
		fmt.Fprintf(p.out, "Skipping file %q, it doesn't fit into PUBLISH.\n", f)
	}
	p.report(ctx, err)
}

func (p *prompt) search(ctx context.Context) {
	file, ok := p.askFilename(ctx)
	if !ok {
		return
	}

	info, err := p.client.Search(file)
	if err != nil {
		p.report(ctx, err)
		return
	}
	p.printPeer(info)
}

func (p *prompt) fetch(ctx context.Context) {
	file, ok := p.askFilename(ctx)
	if !ok {
		return
	}

	info, err := p.client.Fetch(ctx, file)
	switch {
	case err != nil:
		p.report(ctx, err)
	case !info.Found:
		p.printPeer(info)
	default:
		fmt.Fprintf(p.out, "File %q fetched from peer %d\n", file, info.ID)
	}
}

func (p *prompt) askFilename(ctx context.Context) (string, bool) {
	fmt.Fprint(p.out, "Enter a file name: ")
	file, ok := p.readLine(ctx)
	if !ok {
		fmt.Fprintln(p.out, "No filename input.")
	}
	return strings.TrimSpace(file), ok
}

func (p *prompt) printPeer(info registry.PeerInfo) {
	if !info.Found {
		fmt.Fprintln(p.out, "File not indexed by registry")
		return
	}
	fmt.Fprintf(p.out, "File found at\nPeer %d\n%s\n", info.ID, info.Address())
}

func (p *prompt) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(p.out, "Request failed: %s\n", err)
	logger.Get(ctx).Debug("Request failed", zap.Error(err))
}

func (p *prompt) readLine(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-p.in:
		return line, ok
	}
}

// readLines delivers lines of r until it ends. Reading is done outside of the task tree because
// blocked read from the terminal can't be interrupted.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}
