package app

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"review_board/internal/domain"
)

const (
	maxNameLen    = 60
	maxCommentLen = 1200
	maxPhotos     = 3
	// max encoded length of one photo data-URL (~450KB of binary)
	maxPhotoLen = 600_000
)

// Only inline PNG/JPEG data URLs are accepted as photos.
var photoPattern = regexp.MustCompile(`(?i)^data:image/(png|jpe?g);base64,`)

// SubmitInput is the raw POST payload before sanitization.
type SubmitInput struct {
	Rating  int      `json:"rating"`
	Name    string   `json:"name"`
	Comment string   `json:"comment"`
	Photos  []string `json:"photos"`
}

// sanitizeReview builds a pending record from untrusted input: rating
// defaults to 5 and is clamped into [1,5], strings are whitespace-collapsed
// and length-capped, photos are filtered to inline images, capped at three
// and truncated rather than rejected when oversized.
func sanitizeReview(in SubmitInput, now time.Time) (domain.Review, error) {
	rating := in.Rating
	if rating == 0 {
		rating = 5
	}
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}

	comment := collapse(in.Comment, maxCommentLen)
	if comment == "" {
		return domain.Review{}, &domain.ValidationError{Field: "comment", Reason: "required"}
	}

	photos := make([]string, 0, maxPhotos)
	for _, p := range in.Photos {
		if !photoPattern.MatchString(p) {
			continue
		}
		if len(p) > maxPhotoLen {
			p = p[:maxPhotoLen]
		}
		photos = append(photos, p)
		if len(photos) == maxPhotos {
			break
		}
	}

	return domain.Review{
		ID:       newID(now),
		Rating:   rating,
		Name:     collapse(in.Name, maxNameLen),
		Comment:  comment,
		Photos:   photos,
		Date:     now.UTC().Format(time.RFC3339),
		Approved: false,
	}, nil
}

// collapse trims, squeezes runs of whitespace to single spaces and caps the
// result at max runes.
func collapse(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max])
	}
	return s
}

// newID concatenates base36 unix-millis with a short random suffix. Unique
// within one document with overwhelming probability; not a cryptographic
// guarantee.
func newID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return strconv.FormatInt(now.UnixMilli(), 36) + suffix
}
