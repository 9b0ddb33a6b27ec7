package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	funk "github.com/thoas/go-funk"

	"github.com/linkboard/linkboard/internal/models"
)

func (c *CLI) commandLinks(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	subcommand := args[0]
	rest := args[1:]

	var handler func(ctx context.Context) error
	switch subcommand {
	case "list":
		handler = func(ctx context.Context) error { return c.linksList(ctx) }
	case "create":
		handler = func(ctx context.Context) error { return c.linksCreate(ctx, rest) }
	case "update":
		handler = func(ctx context.Context) error { return c.linksUpdate(ctx, rest) }
	case "delete":
		handler = func(ctx context.Context) error { return c.linksDelete(ctx, rest) }
	case "prune":
		handler = func(ctx context.Context) error { return c.linksPrune(ctx) }
	default:
		return fmt.Errorf("%w: links %s", ErrUnknownCommand, subcommand)
	}

	return c.deps.Guard.Protect(handler)(ctx)
}

// linksList renders the dashboard: stat cards, then the link table.
func (c *CLI) linksList(ctx context.Context) error {
	links, err := c.deps.API.ListLinks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load links: %w", err)
	}

	activeLinks := funk.Filter(links, func(link models.Link) bool {
		return link.IsActive
	}).([]models.Link)
	clickCounts := funk.Map(links, func(link models.Link) int64 {
		return link.ClickCount
	}).([]int64)

	fmt.Fprintf(
		c.out,
		"Total links: %d    Total clicks: %d    Active links: %d\n\n",
		len(links),
		int64(funk.Sum(clickCounts)),
		len(activeLinks),
	)

	if len(links) == 0 {
		fmt.Fprintln(c.out, "No links created yet. Shorten your first URL with `linkboard links create -url <url>`.")
		return nil
	}

	table := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tSHORT URL\tORIGINAL URL\tSTATUS\tCLICKS\tCREATED\tEXPIRES")
	for _, link := range links {
		status := "active"
		if !link.IsActive {
			status = "archived"
		}
		expires := "-"
		if link.ExpiresAt != nil {
			expires = link.ExpiresAt.Format(time.DateOnly)
		}
		fmt.Fprintf(
			table,
			"%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			link.ID,
			link.ShortURL,
			truncate(link.OriginalURL, 48),
			status,
			link.ClickCount,
			link.CreatedAt.Format(time.DateOnly),
			expires,
		)
	}

	return table.Flush()
}

func parseExpiry(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	expiresAt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("expiry must be RFC 3339 (e.g. 2027-01-02T15:04:05Z): %w", err)
	}

	return &expiresAt, nil
}

func (c *CLI) linksCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("links create", flag.ContinueOnError)
	fs.SetOutput(c.out)
	originalURL := fs.String("url", "", "URL to shorten")
	alias := fs.String("alias", "", "custom alias (optional)")
	password := fs.String("password", "", "password protecting the link (optional)")
	expires := fs.String("expires", "", "expiry timestamp, RFC 3339 (optional)")
	inactive := fs.Bool("inactive", false, "create the link archived")
	if err := fs.Parse(args); err != nil {
		return err
	}

	expiresAt, err := parseExpiry(*expires)
	if err != nil {
		return err
	}

	request := models.CreateLinkRequest{
		OriginalURL: *originalURL,
		CustomAlias: *alias,
		Password:    *password,
		ExpiresAt:   expiresAt,
		IsActive:    !*inactive,
	}
	if err := models.Validate(request); err != nil {
		return err
	}

	link, err := c.deps.API.CreateLink(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	fmt.Fprintf(c.out, "Link created successfully: %s -> %s (id %s)\n", link.ShortURL, link.OriginalURL, link.ID)

	return nil
}

func (c *CLI) linksUpdate(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errors.New("usage: links update <id> [flags]")
	}
	linkID := args[0]

	fs := flag.NewFlagSet("links update", flag.ContinueOnError)
	fs.SetOutput(c.out)
	originalURL := fs.String("url", "", "new destination URL")
	alias := fs.String("alias", "", "new custom alias")
	password := fs.String("password", "", "new link password")
	expires := fs.String("expires", "", "new expiry timestamp, RFC 3339")
	active := fs.String("active", "", "true to activate, false to archive")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	request := models.UpdateLinkRequest{}
	if *originalURL != "" {
		request.OriginalURL = originalURL
	}
	if *alias != "" {
		request.CustomAlias = alias
	}
	if *password != "" {
		request.Password = password
	}
	if *expires != "" {
		expiresAt, err := parseExpiry(*expires)
		if err != nil {
			return err
		}
		request.ExpiresAt = expiresAt
	}
	switch *active {
	case "":
	case "true", "false":
		isActive := *active == "true"
		request.IsActive = &isActive
	default:
		return errors.New("-active accepts true or false")
	}

	if err := models.Validate(request); err != nil {
		return err
	}

	link, err := c.deps.API.UpdateLink(ctx, linkID, request)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}

	fmt.Fprintf(c.out, "Link updated successfully: %s -> %s\n", link.ShortURL, link.OriginalURL)

	return nil
}

func (c *CLI) linksDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: links delete <id>")
	}

	if err := c.deps.API.DeleteLink(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	fmt.Fprintln(c.out, "Link deleted")

	return nil
}

func (c *CLI) linksPrune(ctx context.Context) error {
	report, err := c.deps.Pruner.Prune(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune links: %w", err)
	}

	for _, link := range report.Deleted {
		fmt.Fprintf(c.out, "Removed %s (%s)\n", link.ShortURL, truncate(link.OriginalURL, 48))
	}
	for linkID, pruneErr := range report.Failed {
		fmt.Fprintf(c.out, "Failed to remove %s: %v\n", linkID, pruneErr)
	}
	fmt.Fprintf(c.out, "Pruned %d links, %d failures\n", len(report.Deleted), len(report.Failed))

	return nil
}

func (c *CLI) commandAnalytics(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: analytics <link-id>")
	}

	analytics, err := c.deps.API.GetAnalytics(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load analytics: %w", err)
	}

	c.renderAnalytics(analytics)

	return nil
}

const chartWidth = 40

// bar renders a proportional text bar for value against the maximum.
func bar(value, max int64) string {
	if max <= 0 || value <= 0 {
		return ""
	}
	width := int(value * chartWidth / max)
	if width == 0 {
		width = 1
	}

	return strings.Repeat("#", width)
}

func (c *CLI) renderAnalytics(analytics *models.AnalyticsResponse) {
	status := "active"
	if !analytics.IsActive {
		status = "inactive"
	}
	fmt.Fprintf(c.out, "%s\n", analytics.OriginalURL)
	fmt.Fprintf(c.out, "%s  [%s]  created %s  total clicks %d\n",
		analytics.ShortURL,
		status,
		analytics.CreatedAt.Format(time.DateOnly),
		analytics.TotalClicks,
	)

	if len(analytics.ClicksByDate) > 0 {
		fmt.Fprintln(c.out, "\nClicks over time:")
		var maxClicks int64
		for _, point := range analytics.ClicksByDate {
			if point.Clicks > maxClicks {
				maxClicks = point.Clicks
			}
		}
		for _, point := range analytics.ClicksByDate {
			fmt.Fprintf(c.out, "  %s  %5d  %s\n", point.Date, point.Clicks, bar(point.Clicks, maxClicks))
		}
	}

	if len(analytics.DeviceDistribution) > 0 {
		fmt.Fprintln(c.out, "\nDevices:")
		for _, share := range analytics.DeviceDistribution {
			percent := int64(0)
			if analytics.TotalClicks > 0 {
				percent = share.Clicks * 100 / analytics.TotalClicks
			}
			fmt.Fprintf(c.out, "  %-10s %5d  %3d%%  %s\n", share.Device, share.Clicks, percent, bar(share.Clicks, analytics.TotalClicks))
		}
	}

	if len(analytics.RecentClicks) > 0 {
		fmt.Fprintln(c.out, "\nRecent clicks:")
		table := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(table, "  TIME\tIP\tDEVICE\tCOUNTRY")
		for _, click := range analytics.RecentClicks {
			country := click.Country
			if country == "" {
				country = "-"
			}
			fmt.Fprintf(table, "  %s\t%s\t%s\t%s\n",
				click.ClickedAt.Format(time.RFC3339),
				click.IPAddress,
				click.DeviceType,
				country,
			)
		}
		_ = table.Flush()
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}

	return value[:limit-3] + "..."
}
