package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Louieza23/Letterboxio/pkg/addon"
	"github.com/Louieza23/Letterboxio/pkg/config"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

type command struct {
	minArgs int
	maxArgs int
	usage   string
	run     func(ctx context.Context, svc *addon.Service, opts *Options) error
}

func (c command) checkArgs(args []string) error {
	if len(args) < c.minArgs || len(args) > c.maxArgs {
		return fmt.Errorf("usage: letterboxio %s", c.usage)
	}
	return nil
}

var commands = map[string]command{
	"listing":   {0, 0, "listing", runListing},
	"search":    {1, 1, "search <query>", runSearch},
	"meta":      {1, 1, "meta <slug>", runMeta},
	"resolve":   {1, 1, "resolve <external-id>", runResolve},
	"rate":      {2, 2, "rate <external-id> <stars>", runRate},
	"watchlist": {2, 2, "watchlist <external-id> add|remove", runWatchlist},
}

func printItems(title string, items []types.ListingItem) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(items))))
	for i, item := range items {
		fmt.Printf("%4d  %s  %s\n", i+1, slugStyle.Render(item.Slug), item.Title)
	}
}

func runListing(ctx context.Context, svc *addon.Service, opts *Options) error {
	if svc.User() == "" {
		return errors.New("no watchlist owner configured (set letterboxd.user or LETTERBOXIO_USER)")
	}
	printItems(svc.User()+"'s watchlist", svc.GetListing(ctx))
	return nil
}

func runSearch(ctx context.Context, svc *addon.Service, opts *Options) error {
	query := opts.Args[0]
	printItems(fmt.Sprintf("Matches for %q", query), svc.Search(ctx, query))
	return nil
}

func runMeta(ctx context.Context, svc *addon.Service, opts *Options) error {
	meta := svc.GetMetadata(ctx, opts.Args[0])

	var b strings.Builder
	title := meta.Title
	if title == "" {
		title = meta.Slug
	}
	if meta.Year > 0 {
		title = fmt.Sprintf("%s (%d)", title, meta.Year)
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "slug:        %s\n", meta.Slug)
	fmt.Fprintf(&b, "external id: %s\n", orNone(meta.ExternalID))
	fmt.Fprintf(&b, "poster:      %s", orNone(meta.Poster))
	if meta.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render(meta.Description))
	}
	fmt.Println(boxStyle.Render(b.String()))
	return nil
}

func runResolve(ctx context.Context, svc *addon.Service, opts *Options) error {
	slug, err := svc.Resolve(ctx, opts.Args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s → %s\n", opts.Args[0], slugStyle.Render(slug))
	return nil
}

func runRate(ctx context.Context, svc *addon.Service, opts *Options) error {
	externalID := opts.Args[0]
	stars, err := strconv.ParseFloat(opts.Args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", types.ErrInvalidRating, opts.Args[1])
	}

	if opts.Async {
		return reportQueued("rate", externalID, svc.SubmitRating(externalID, stars))
	}

	slug, err := svc.Resolve(ctx, externalID)
	if err != nil {
		return err
	}
	return reportResult(fmt.Sprintf("rated %s %.1f★", slug, stars), svc.Rate(ctx, slug, stars))
}

func runWatchlist(ctx context.Context, svc *addon.Service, opts *Options) error {
	externalID := opts.Args[0]
	var present bool
	switch opts.Args[1] {
	case "add":
		present = true
	case "remove":
		present = false
	default:
		return errors.New("usage: letterboxio watchlist <external-id> add|remove")
	}

	if opts.Async {
		return reportQueued(string(types.WatchlistAction(present)), externalID, svc.SubmitWatchlist(externalID, present))
	}

	slug, err := svc.Resolve(ctx, externalID)
	if err != nil {
		return err
	}
	return reportResult(fmt.Sprintf("%s %s", types.WatchlistAction(present), slug), svc.SetWatchlistMembership(ctx, slug, present))
}

func reportResult(what string, result types.ActionResult) error {
	if !result.Success {
		return result.Err
	}
	fmt.Println(successStyle.Render("✓ " + what))
	return nil
}

func reportQueued(kind, externalID string, accepted bool) error {
	if !accepted {
		return fmt.Errorf("%s %s was not accepted (duplicate, invalid, or no credentials; see log)", kind, externalID)
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("queued %s %s, waiting for it to finish…", kind, externalID)))
	return nil
}

func printConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("warning: %v", err)))
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return mutedStyle.Render("(none)")
	}
	return s
}
