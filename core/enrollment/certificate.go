package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/jmoiron/sqlx"
	qrcode "github.com/skip2/go-qrcode"
)

type Certificate struct {
	EnrollmentID string    `json:"enrollmentId"`
	CourseID     string    `json:"courseId"`
	URL          string    `json:"url"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// HandleCertificate issues (idempotently) and returns the certificate of
// a completed enrollment. With ?format=qr the verification URL is
// rendered as a PNG QR code for embedding in the printed certificate.
func HandleCertificate(db *sqlx.DB, publicURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		e, err := fetchOwned(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		if e.Status != Completed {
			err := errors.New("certificate requires a completed enrollment")
			return weberr.Unprocessable(err, err.Error())
		}

		if !e.CertificateIssued {
			url := fmt.Sprintf("%s/certificates/%s", publicURL, e.ID)
			if err := SetCertificate(ctx, db, e.ID, url, time.Now().UTC()); err != nil {
				return err
			}

			e, err = Fetch(ctx, db, e.ID)
			if err != nil {
				return err
			}
		}

		cert := Certificate{
			EnrollmentID: e.ID,
			CourseID:     e.CourseID,
			URL:          *e.CertificateURL,
			IssuedAt:     e.UpdatedAt,
		}

		if r.URL.Query().Get("format") == "qr" {
			png, err := qrcode.Encode(cert.URL, qrcode.Medium, 256)
			if err != nil {
				return fmt.Errorf("encoding certificate qr: %w", err)
			}

			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(png); err != nil {
				return fmt.Errorf("writing certificate qr: %w", err)
			}
			return nil
		}

		return web.Respond(ctx, w, cert, http.StatusOK)
	}
}
