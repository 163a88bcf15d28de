package extensions

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"
)

const (
	nodeVideo = "video"

	AttrVideoService = "service"
	AttrVideoID      = "videoID"

	domVideoService = "data-service"
	domVideoID      = "data-video-id"

	// Ahead of the link parser (200) so `@[` is not taken as link text.
	videoParserPriority = 150
)

// Video services.
const (
	VideoYouTube = "youtube"
	VideoVimeo   = "vimeo"
	VideoVine    = "vine"
	VideoPrezi   = "prezi"
	VideoOsf     = "osf"
)

var KindVideo = ast.NewNodeKind("Video")

var videoIDPatterns = map[string]*regexp.Regexp{
	VideoYouTube: regexp.MustCompile(`^https?://(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|v/)|youtu\.be/)([A-Za-z0-9_-]{11})`),
	VideoVimeo:   regexp.MustCompile(`^https?://(?:www\.|player\.)?vimeo\.com/(?:video/)?(\d+)`),
	VideoVine:    regexp.MustCompile(`^https?://(?:www\.)?vine\.co/v/([A-Za-z0-9]+)`),
	VideoPrezi:   regexp.MustCompile(`^https?://prezi\.com/(?:p/|embed/)?([A-Za-z0-9_-]+)`),
	VideoOsf:     regexp.MustCompile(`^https?://(?:www\.)?(?:mfr\.)?osf\.io/(?:render\?url=https?://osf\.io/)?([A-Za-z0-9]+)`),
}

// VideoSize is the player size of one service.
type VideoSize struct {
	Width  int `option:"width"`
	Height int `option:"height"`
}

// VideoOptions configure the video unit. Services maps a service name to its player size;
// only listed services are rendered as players, the rest as a stub.
type VideoOptions struct {
	Services map[string]VideoSize `option:"services"`
}

func defaultVideoOptions() VideoOptions {
	return VideoOptions{Services: map[string]VideoSize{
		VideoYouTube: {Width: 640, Height: 390},
		VideoVimeo:   {Width: 500, Height: 281},
		VideoVine:    {Width: 600, Height: 600},
		VideoPrezi:   {Width: 550, Height: 400},
	}}
}

// ExtractVideoID returns the id for a service from either a bare id or a service URL.
func ExtractVideoID(service, value string) string {
	pattern, ok := videoIDPatterns[service]
	if !ok {
		return value
	}
	if match := pattern.FindStringSubmatch(value); match != nil {
		return match[1]
	}

	return value
}

// VideoNode is an `@[service](id)` embed.
type VideoNode struct {
	ast.BaseInline
	Service string
	VideoID string
}

func (n *VideoNode) Kind() ast.NodeKind {
	return KindVideo
}

func (n *VideoNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Service": n.Service,
		"VideoID": n.VideoID,
	}, nil)
}

var videoPattern = regexp.MustCompile(`^@\[([a-zA-Z]+)\]\(\s*([^\s()]+)\s*\)`)

type videoParser struct{}

func (p *videoParser) Trigger() []byte {
	return []byte{'@'}
}

func (p *videoParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	match := videoPattern.FindSubmatch(line)
	if match == nil {
		return nil
	}
	service := string(match[1])
	if _, ok := videoIDPatterns[service]; !ok {
		return nil
	}
	block.Advance(len(match[0]))
	return &VideoNode{Service: service, VideoID: ExtractVideoID(service, string(match[2]))}
}

type videoExtension struct{}

func (e *videoExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(&videoParser{}, videoParserPriority),
	))
}

// Video declares inline video embeds. Options decode into VideoOptions.
func Video() extension.Unit {
	return extension.Unit{
		Name:     "video",
		Requires: []string{"base"},
		Apply:    applyVideo,
	}
}

func applyVideo(b *extension.Builder, opts extension.Options) error {
	options := defaultVideoOptions()
	if err := extension.DecodeOptions(opts, &options); err != nil {
		return err
	}
	for service := range options.Services {
		if _, ok := videoIDPatterns[service]; !ok {
			return fmt.Errorf("unknown video service %q", service)
		}
	}

	b.ConfigureMarkupParser(&videoExtension{})
	videoAttrs := func(el *html.Node) (map[string]interface{}, bool) {
		return map[string]interface{}{
			AttrVideoService: attrValue(el, domVideoService),
			AttrVideoID:      attrValue(el, domVideoID),
		}, true
	}
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:   nodeVideo,
			Inline: true,
			Atom:   true,
			Group:  "inline",
			Attrs: map[string]schema.AttributeSpec{
				AttrVideoService: schema.RequiredAttr(),
				AttrVideoID:      schema.RequiredAttr(),
			},
			ParseDOM: []schema.DOMRule{
				{Selector: "span[" + domVideoService + "][" + domVideoID + "]", GetAttrs: videoAttrs},
				{Selector: "iframe[" + domVideoService + "][" + domVideoID + "]", GetAttrs: videoAttrs, Priority: 100},
			},
			ToDOM: func(node schema.Node) schema.DOMOutput {
				return videoDOM(options, node)
			},
		},
		FromMarkup: []markup.ParseHandler{{
			Kind: KindVideo,
			Parse: func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
				video := node.(*VideoNode)
				return []schema.Node{{
					Type: nodeVideo,
					Attrs: map[string]interface{}{
						AttrVideoService: video.Service,
						AttrVideoID:      video.VideoID,
					},
				}}, nil
			},
		}},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			state.Write(videoMarkup(node))
			return nil
		},
	})
	b.AddMarkupAction("video", extension.WrapSelection("@["+VideoYouTube+"](", ")"))
	return nil
}

func videoMarkup(node schema.Node) string {
	return "@[" + node.GetStringAttr(AttrVideoService, "") + "](" + node.GetStringAttr(AttrVideoID, "") + ")"
}

func videoDOM(options VideoOptions, node schema.Node) schema.DOMOutput {
	service := node.GetStringAttr(AttrVideoService, "")
	videoID := node.GetStringAttr(AttrVideoID, "")
	size, ok := options.Services[service]
	if !ok || videoID == "" {
		return schema.Leaf(schema.Elem("span", map[string]string{
			"class":         "video-stub",
			domVideoService: service,
			domVideoID:      videoID,
		}))
	}
	iframe := schema.Elem("iframe", map[string]string{
		"class":           "embed-responsive-item " + service + "-player",
		"type":            "text/html",
		"width":           strconv.Itoa(size.Width),
		"height":          strconv.Itoa(size.Height),
		"src":             videoURL(service, videoID),
		"frameborder":     "0",
		"allowfullscreen": "",
		domVideoService:   service,
		domVideoID:        videoID,
	})
	wrapper := schema.Elem("div", map[string]string{"class": "embed-responsive embed-responsive-16by9"})
	wrapper.AppendChild(iframe)
	return schema.Leaf(wrapper)
}

func videoURL(service, videoID string) string {
	switch service {
	case VideoYouTube:
		return "https://www.youtube.com/embed/" + videoID
	case VideoVimeo:
		return "https://player.vimeo.com/video/" + videoID
	case VideoVine:
		return "https://vine.co/v/" + videoID + "/embed/simple"
	case VideoPrezi:
		return "https://prezi.com/embed/" + videoID + "/?bgcolor=ffffff&lock_to_path=0&autoplay=0&autohide_ctrls=0"
	case VideoOsf:
		return "https://mfr.osf.io/render?url=https://osf.io/" + videoID + "/?action=download"
	default:
		return ""
	}
}
