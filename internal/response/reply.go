// Package response turns AI replies into Telegram send calls.
package response

import (
	"fmt"
	"iter"
)

// MaxMessageLen is the Telegram limit on characters per text message
const MaxMessageLen = 4096

// PhotoFilename is the name under which generated images are uploaded
const PhotoFilename = "answer.jpg"

// Kind tags the content of a Reply
type Kind int

const (
	KindText Kind = iota
	KindImage
	KindImageURL
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindImageURL:
		return "image_url"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reply is an answer of the AI backend. Only the field matching Kind is set.
type Reply struct {
	Kind  Kind
	Text  string
	Image []byte
	URL   string
}

func TextReply(text string) Reply {
	return Reply{Kind: KindText, Text: text}
}

func ImageReply(data []byte) Reply {
	return Reply{Kind: KindImage, Image: data}
}

func ImageURLReply(url string) Reply {
	return Reply{Kind: KindImageURL, URL: url}
}

// Chunks splits text into pieces of at most size characters. Splitting is
// done on character count only, words may be cut. Joining the pieces gives
// back text; an empty text yields nothing. A size below one falls back to
// MaxMessageLen.
func Chunks(text string, size int) iter.Seq[string] {
	if size < 1 {
		size = MaxMessageLen
	}
	return func(yield func(string) bool) {
		rest := text
		for rest != "" {
			end := len(rest)
			n := 0
			for i := range rest {
				if n == size {
					end = i
					break
				}
				n++
			}

			if !yield(rest[:end]) {
				return
			}
			rest = rest[end:]
		}
	}
}
