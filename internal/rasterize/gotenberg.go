// Package rasterize converts finished HTML into a paginated PDF through an
// external Gotenberg service, degrading to print-ready HTML when the service
// is unavailable.
package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/liftline-crm/liftline/internal/templates"
)

const convertTimeout = 30 * time.Second

// Options carries the page geometry for one conversion, taken from the
// template settings.
type Options struct {
	PageSize string
	Margins  templates.Margins
}

// Result is the outcome of one conversion. When Fallback is true, Data holds
// the original HTML wrapped in a print-triggering shell and ContentType is
// text/html; callers pick the response content type from this flag.
type Result struct {
	Data        []byte
	ContentType string
	Fallback    bool
}

// Client wraps the Gotenberg API. One client is shared process-wide; its
// underlying http.Client pools connections, and every conversion runs under
// a bounded timeout so a hung conversion cannot stall the queue.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs the shared rasterizer client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: convertTimeout,
		},
		logger: logger,
	}
}

// Ping checks whether the remote service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// Convert renders HTML to a paginated PDF. Any failure (service down,
// timeout, bad response) yields the HTML fallback instead of an error, so
// document delivery never fails on rasterizer unavailability.
func (c *Client) Convert(ctx context.Context, html string, opts Options) Result {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	pdf, err := c.convert(ctx, html, opts)
	if err != nil {
		c.logger.Warn("rasterizer unavailable, falling back to print HTML", slog.Any("error", err))
		return Result{
			Data:        []byte(printShell(html)),
			ContentType: "text/html; charset=utf-8",
			Fallback:    true,
		}
	}
	return Result{Data: pdf, ContentType: "application/pdf"}
}

func (c *Client) convert(ctx context.Context, html string, opts Options) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, err
	}
	width, height := paperDimensions(opts.PageSize)
	fields := map[string]string{
		"paperWidth":   width,
		"paperHeight":  height,
		"marginTop":    mmToInches(opts.Margins.Top),
		"marginBottom": mmToInches(opts.Margins.Bottom),
		"marginLeft":   mmToInches(opts.Margins.Left),
		"marginRight":  mmToInches(opts.Margins.Right),
		"waitDelay":    "500ms",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/forms/chromium/convert/html", c.baseURL), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("gotenberg response %d: %s", resp.StatusCode, string(detail))
	}
	return io.ReadAll(resp.Body)
}

// paperDimensions maps a page size name to Gotenberg's inch dimensions.
func paperDimensions(pageSize string) (width, height string) {
	switch pageSize {
	case "Letter":
		return "8.5", "11"
	case "Legal":
		return "8.5", "14"
	case "A3":
		return "11.69", "16.54"
	default: // A4
		return "8.27", "11.69"
	}
}

func mmToInches(mm float64) string {
	return strconv.FormatFloat(mm/25.4, 'f', 2, 64)
}

// printShell wraps rendered HTML so a browser triggers its native print
// dialog on load. Used when the rasterizer cannot produce a PDF.
func printShell(html string) string {
	return html + "\n<script>window.addEventListener('load',function(){window.print();});</script>\n"
}
