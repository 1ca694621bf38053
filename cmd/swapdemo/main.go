// Command swapdemo pumps frames from a producer to a consumer through a
// software-backed buffer queue and writes the frames it exchanged out
// as a PNG contact sheet.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/swapchain"
	"github.com/gogpu/swapchain/backend/software"
	"github.com/gogpu/swapchain/fence"
	"github.com/gogpu/swapchain/surface"
	"github.com/gogpu/swapchain/timing"
)

const thumbSize = 64

func main() {
	var (
		width   = flag.Int("width", 256, "buffer width")
		height  = flag.Int("height", 256, "buffer height")
		frames  = flag.Int("frames", 24, "frames to exchange")
		slots   = flag.Int("slots", 4, "queue slot count")
		output  = flag.String("output", "frames.png", "contact sheet file")
		verbose = flag.Bool("v", false, "dump queue state after the run")
	)
	flag.Parse()

	q, err := swapchain.New(
		swapchain.WithSlotCount(*slots),
		swapchain.WithAllocator(software.NewAllocator()),
		swapchain.WithName("swapdemo"),
	)
	if err != nil {
		log.Fatalf("Failed to create queue: %v", err)
	}

	cons := q.Consumer()
	if err := cons.Connect(notifier{}, true); err != nil {
		log.Fatalf("Failed to connect consumer: %v", err)
	}

	thumbs := make([]*image.RGBA, *frames)
	tracker := new(timing.FrameTracker)
	done := make(chan error, 1)
	go func() { done <- consume(cons, tracker, thumbs) }()

	surf := surface.New(q.Producer(), nil)
	if err := surf.Connect(context.Background(), swapchain.APICPU); err != nil {
		log.Fatalf("Failed to connect producer: %v", err)
	}
	if err := produce(surf, *width, *height, *frames); err != nil {
		log.Fatalf("Producer failed: %v", err)
	}
	if err := <-done; err != nil {
		log.Fatalf("Consumer failed: %v", err)
	}
	if err := surf.Disconnect(); err != nil {
		log.Fatalf("Failed to disconnect producer: %v", err)
	}

	if *verbose {
		q.Dump(os.Stdout)
	}

	if err := savePNG(*output, contactSheet(thumbs)); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	st := tracker.Stats()
	p := message.NewPrinter(language.English)
	p.Printf("exchanged %d frames, mean frame interval %d ns\n", st.Frames, st.MeanInterval)
	p.Printf("queue: %v\n", q.Stats())
	p.Printf("contact sheet saved to %s\n", *output)
}

// notifier satisfies the consumer listener. The demo drains with
// blocking acquires instead of reacting to callbacks.
type notifier struct{}

func (notifier) OnFrameAvailable()  {}
func (notifier) OnBuffersReleased() {}

// produce renders count frames and hands each to the queue. Rendering
// is a CPU fill, so frames are queued with the zero fence.
func produce(surf *surface.Surface, width, height, count int) error {
	surf.SetBufferSize(uint32(width), uint32(height))
	surf.SetFormat(gputypes.TextureFormatRGBA8Unorm)

	for frame := 0; frame < count; frame++ {
		f, err := surf.Dequeue()
		if err != nil {
			return fmt.Errorf("dequeue frame %d: %w", frame, err)
		}
		// The previous reader of this slot may still be in flight.
		if err := f.Fence.Wait(time.Second); err != nil {
			return fmt.Errorf("wait for slot %d: %w", f.Slot, err)
		}
		paint(f.Buffer, frame, count)
		if err := surf.Queue(f, fence.Fence{}); err != nil {
			return fmt.Errorf("queue frame %d: %w", frame, err)
		}
	}
	return nil
}

// consume drains one frame per thumbnail slot, folding present times
// into the tracker and keeping a downscaled copy of each frame.
func consume(cons *swapchain.Consumer, tracker *timing.FrameTracker, thumbs []*image.RGBA) error {
	for i := range thumbs {
		item, err := cons.AcquireBuffer(true)
		if err != nil {
			return fmt.Errorf("acquire frame %d: %w", i, err)
		}
		if err := item.Fence.Wait(time.Second); err != nil {
			return fmt.Errorf("wait for frame %d: %w", item.FrameNumber, err)
		}
		thumb, err := software.Thumbnail(item.Buffer, thumbSize)
		if err != nil {
			return fmt.Errorf("thumbnail frame %d: %w", item.FrameNumber, err)
		}
		thumbs[i] = thumb

		tracker.SetDesiredPresentTime(item.Timestamp)
		tracker.SetActualPresentTime(time.Now().UnixNano())
		tracker.AdvanceFrame()

		if err := cons.ReleaseBuffer(item.Slot, item.FrameNumber, fence.Fence{}); err != nil {
			return fmt.Errorf("release frame %d: %w", item.FrameNumber, err)
		}
	}
	return nil
}

// paint fills the buffer with a gradient whose phase advances per
// frame, plus a sliding bar, so the contact sheet shows motion.
func paint(buf *swapchain.Buffer, frame, count int) {
	pix, ok := software.BytesOf(buf)
	if !ok {
		return
	}
	w, h, stride := int(buf.Width), int(buf.Height), int(buf.Stride)
	phase := 0.0
	if count > 1 {
		phase = float64(frame) / float64(count-1)
	}
	for y := 0; y < h; y++ {
		row := pix[y*stride : y*stride+w*4]
		vert := float64(y) / float64(h)
		for x := 0; x < w; x++ {
			t := float64(x) / float64(w)
			row[x*4+0] = uint8(255 * t)
			row[x*4+1] = uint8(255 * vert * (1 - phase))
			row[x*4+2] = uint8(255 * phase)
			row[x*4+3] = 255
		}
	}

	const barW = 8
	barX := 0
	if count > 1 && w > barW {
		barX = frame * (w - barW) / (count - 1)
	}
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		for x := barX; x < barX+barW && x < w; x++ {
			row[x*4+0], row[x*4+1], row[x*4+2], row[x*4+3] = 255, 255, 255, 255
		}
	}
}

// contactSheet lays the thumbnails out on a grid, eight per row.
func contactSheet(thumbs []*image.RGBA) *image.RGBA {
	const cols, pad = 8, 4
	rows := (len(thumbs) + cols - 1) / cols
	cell := thumbSize + pad
	sheet := image.NewRGBA(image.Rect(0, 0, cols*cell+pad, rows*cell+pad))
	for i, th := range thumbs {
		if th == nil {
			continue
		}
		x := pad + (i%cols)*cell
		y := pad + (i/cols)*cell
		r := image.Rect(x, y, x+th.Bounds().Dx(), y+th.Bounds().Dy())
		draw.Draw(sheet, r, th, th.Bounds().Min, draw.Src)
	}
	return sheet
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
