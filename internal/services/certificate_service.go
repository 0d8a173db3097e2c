// internal/services/certificate_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

const (
	certificateWidth  = 1600
	certificateHeight = 1131
)

// CertificateData is everything a renderer prints.
type CertificateData struct {
	CertificateID string
	NomineeName   string
	CategoryName  string
	AwardName     string
	Issuer        string
	Signatory     string
	Year          int
	IssuedAt      time.Time
}

// CertificateRenderer draws one kind of certificate.
type CertificateRenderer interface {
	Render(data CertificateData) (image.Image, error)
}

type CertificateTaskPayload struct {
	NominationID uuid.UUID               `json:"nomination_id"`
	Status       models.NominationStatus `json:"status"`
}

type CertificateService struct {
	db            *gorm.DB
	config        *config.Config
	storage       *StorageService
	notifications *NotificationService
	renderers     map[models.CertificateKind]CertificateRenderer
	now           func() time.Time
}

func NewCertificateService(db *gorm.DB, config *config.Config, storage *StorageService, notifications *NotificationService, outbox *OutboxService) *CertificateService {
	s := &CertificateService{
		db:            db,
		config:        config,
		storage:       storage,
		notifications: notifications,
		renderers: map[models.CertificateKind]CertificateRenderer{
			models.CertificateKindWinner:      WinnerRenderer{},
			models.CertificateKindFinalist:    FinalistRenderer{},
			models.CertificateKindParticipant: ParticipantRenderer{},
		},
		now: time.Now,
	}
	outbox.Register(models.TaskKindCertificate, s.HandleCertificateTask)
	return s
}

// DeriveCertificateID returns SAP-<year>-<KIND>-<hash>, stable for a nomination and status.
func DeriveCertificateID(nominationID uuid.UUID, status models.NominationStatus, year int) string {
	kind, ok := models.CertificateKindFor(status)
	if !ok {
		kind = models.CertificateKind(status)
	}
	hash := strings.ToUpper(utils.HashString(nominationID.String() + "|" + string(status))[:10])
	return fmt.Sprintf("SAP-%d-%s-%s", year, strings.ToUpper(string(kind)), hash)
}

func (s *CertificateService) HandleCertificateTask(ctx context.Context, task *models.OutboxTask) error {
	var payload CertificateTaskPayload
	if err := decodePayload(task, &payload); err != nil {
		return err
	}
	_, err := s.Generate(ctx, payload.NominationID)
	return err
}

// Generate renders and stores the certificate for the nomination's current status. It returns
// false without error when there is nothing to do: the nomination is gone, its status earns no
// certificate, or a certificate already exists.
func (s *CertificateService) Generate(ctx context.Context, nominationID uuid.UUID) (bool, error) {
	var nomination models.Nomination
	if err := s.db.WithContext(ctx).Preload("Category").First(&nomination, "id = ?", nominationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load nomination: %w", err)
	}

	logger := logrus.WithField("nomination_id", nominationID.String())

	if nomination.CertificateFile != "" {
		logger.Debug("Certificate already generated, skipping")
		return false, nil
	}

	kind, ok := models.CertificateKindFor(nomination.Status)
	if !ok {
		logger.WithField("status", nomination.Status).Debug("Status earns no certificate, skipping")
		return false, nil
	}

	renderer, ok := s.renderers[kind]
	if !ok {
		return false, Permanent(fmt.Errorf("no certificate renderer for kind %q", kind))
	}

	now := s.now().UTC()
	certificateID := DeriveCertificateID(nomination.ID, nomination.Status, now.Year())

	img, err := renderer.Render(CertificateData{
		CertificateID: certificateID,
		NomineeName:   nomination.NomineeName,
		CategoryName:  categoryName(&nomination),
		AwardName:     s.config.Certificate.AwardName,
		Issuer:        s.config.Certificate.Issuer,
		Signatory:     s.config.Certificate.Signatory,
		Year:          now.Year(),
		IssuedAt:      now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to render certificate: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return false, fmt.Errorf("failed to encode certificate: %w", err)
	}

	key := fmt.Sprintf("certificates/%s_%s.png", certificateID, uuid.NewString()[:8])
	stored, err := s.storage.SaveBytes(ctx, buf.Bytes(), key, "image/png")
	if err != nil {
		return false, fmt.Errorf("failed to store certificate: %w", err)
	}

	// Conditional write: a concurrent run that got here first wins
	result := s.db.WithContext(ctx).Model(&models.Nomination{}).
		Where("id = ? AND (certificate_file = '' OR certificate_file IS NULL)", nomination.ID).
		Updates(map[string]interface{}{
			"certificate_id":           certificateID,
			"certificate_file":         stored.URL,
			"certificate_generated_at": now,
		})
	if result.Error != nil {
		s.storage.deleteBestEffort(ctx, stored.URL, "certificate update failed")
		return false, fmt.Errorf("failed to save certificate fields: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		s.storage.deleteBestEffort(ctx, stored.URL, "certificate already set")
		logger.Info("Certificate set concurrently, discarded duplicate")
		return false, nil
	}

	nomination.CertificateID = certificateID
	nomination.CertificateFile = stored.URL
	nomination.CertificateGeneratedAt = &now

	logger.WithFields(logrus.Fields{
		"certificate_id": certificateID,
		"kind":           kind,
	}).Info("Certificate generated")

	s.notifications.SendCertificateIssued(ctx, &nomination)
	return true, nil
}

// Renderers

type certificateTheme struct {
	Heading    string
	Tagline    string
	Background color.NRGBA
	Accent     color.NRGBA
	Ink        color.NRGBA
	Border     int
	Seal       bool
}

type WinnerRenderer struct{}

func (WinnerRenderer) Render(data CertificateData) (image.Image, error) {
	return drawCertificate(data, certificateTheme{
		Heading:    "Certificate of Excellence",
		Tagline:    "is hereby named WINNER of",
		Background: color.NRGBA{R: 255, G: 252, B: 240, A: 255},
		Accent:     color.NRGBA{R: 191, G: 144, B: 0, A: 255},
		Ink:        color.NRGBA{R: 33, G: 33, B: 33, A: 255},
		Border:     28,
		Seal:       true,
	})
}

type FinalistRenderer struct{}

func (FinalistRenderer) Render(data CertificateData) (image.Image, error) {
	return drawCertificate(data, certificateTheme{
		Heading:    "Certificate of Distinction",
		Tagline:    "is recognised as a FINALIST of",
		Background: color.NRGBA{R: 248, G: 249, B: 252, A: 255},
		Accent:     color.NRGBA{R: 120, G: 130, B: 145, A: 255},
		Ink:        color.NRGBA{R: 33, G: 33, B: 33, A: 255},
		Border:     20,
		Seal:       true,
	})
}

type ParticipantRenderer struct{}

func (ParticipantRenderer) Render(data CertificateData) (image.Image, error) {
	return drawCertificate(data, certificateTheme{
		Heading:    "Certificate of Nomination",
		Tagline:    "was officially nominated for",
		Background: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Accent:     color.NRGBA{R: 0, G: 94, B: 170, A: 255},
		Ink:        color.NRGBA{R: 40, G: 40, B: 40, A: 255},
		Border:     12,
	})
}

var (
	fontsOnce    sync.Once
	regularFont  *opentype.Font
	boldFont     *opentype.Font
	fontParseErr error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regularFont, fontParseErr = opentype.Parse(goregular.TTF); fontParseErr != nil {
			return
		}
		boldFont, fontParseErr = opentype.Parse(gobold.TTF)
	})
	return fontParseErr
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func drawCertificate(data CertificateData, theme certificateTheme) (image.Image, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	img := imaging.New(certificateWidth, certificateHeight, theme.Background)

	// Frame: outer accent band, inner hairline
	drawFrame(img, img.Bounds(), theme.Border, theme.Accent)
	inner := img.Bounds().Inset(theme.Border + 24)
	drawFrame(img, inner, 3, theme.Accent)

	type line struct {
		text string
		font *opentype.Font
		size float64
		y    int
		ink  color.NRGBA
	}

	lines := []line{
		{strings.ToUpper(data.Issuer), boldFont, 30, 200, theme.Accent},
		{theme.Heading, boldFont, 72, 300, theme.Ink},
		{"This certifies that", regularFont, 32, 400, theme.Ink},
		{data.NomineeName, boldFont, 84, 520, theme.Accent},
		{theme.Tagline, regularFont, 32, 600, theme.Ink},
		{fmt.Sprintf("%s %d", data.AwardName, data.Year), boldFont, 44, 670, theme.Ink},
	}
	if data.CategoryName != "" {
		lines = append(lines, line{"Category: " + data.CategoryName, regularFont, 34, 735, theme.Ink})
	}
	lines = append(lines,
		line{data.Signatory, boldFont, 28, 900, theme.Ink},
		line{"Issued " + data.IssuedAt.Format("2 January 2006"), regularFont, 24, 945, theme.Ink},
		line{"Certificate ID: " + data.CertificateID, regularFont, 20, 1000, theme.Ink},
	)

	for _, l := range lines {
		face, err := newFace(l.font, fitSize(l.font, l.text, l.size, certificateWidth-2*(theme.Border+80)))
		if err != nil {
			return nil, err
		}
		drawCentered(img, face, l.text, l.y, l.ink)
		face.Close()
	}

	// Signature rule above the signatory
	draw.Draw(img, image.Rect(certificateWidth/2-200, 860, certificateWidth/2+200, 862), image.NewUniform(theme.Ink), image.Point{}, draw.Src)

	if theme.Seal {
		drawSeal(img, image.Pt(certificateWidth-theme.Border-190, certificateHeight-theme.Border-190), 110, theme.Accent)
	}

	return img, nil
}

func drawFrame(img draw.Image, r image.Rectangle, width int, c color.Color) {
	src := image.NewUniform(c)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

// drawSeal paints a filled ring centred on c.
func drawSeal(img draw.Image, c image.Point, radius int, col color.Color) {
	inner := radius - 14
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			d := x*x + y*y
			if d <= radius*radius && (d >= inner*inner || d <= (inner-10)*(inner-10)) {
				img.Set(c.X+x, c.Y+y, col)
			}
		}
	}
}

// fitSize shrinks size until text fits maxWidth.
func fitSize(f *opentype.Font, text string, size float64, maxWidth int) float64 {
	for size > 12 {
		face, err := newFace(f, size)
		if err != nil {
			return size
		}
		width := font.MeasureString(face, text).Ceil()
		face.Close()
		if width <= maxWidth {
			return size
		}
		size -= 4
	}
	return size
}

func drawCentered(img draw.Image, face font.Face, text string, baseline int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	d.Dot = fixed.P((certificateWidth-width)/2, baseline)
	d.DrawString(text)
}
