package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"time"

	config "github.com/ahmedfarouk/online_academy/configs"
	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/models"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GenerateCompletionCertificate renders, uploads and records a completion
// certificate once an enrollment reaches 100% progress. Certificates are
// decorative: every failure is log-only and the enrollment state stands.
func GenerateCompletionCertificate(enrollmentID uuid.UUID) {
	var enrollment models.Enrollment
	if err := database.DB.Preload("User").Preload("Course").First(&enrollment, "id = ?", enrollmentID).Error; err != nil {
		log.Printf("🔥 Certificate generation: enrollment %s not found: %v", enrollmentID, err)
		return
	}

	if enrollment.CompletedAt == nil || enrollment.Progress < 100 {
		return
	}

	var existing models.Certificate
	err := database.DB.Where("user_id = ? AND course_id = ?", enrollment.UserID, enrollment.CourseID).First(&existing).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("🔥 Certificate lookup failed for enrollment %s: %v", enrollmentID, err)
		return
	}

	htmlData, err := generateCertificateHTML(enrollment.User.FullName, enrollment.Course.Title, *enrollment.CompletedAt)
	if err != nil {
		log.Printf("🔥 Failed to generate certificate HTML: %v", err)
		return
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		log.Printf("🔥 Failed to generate certificate PDF: %v", err)
		return
	}

	uploadURL, err := uploadToCloudinary(pdfBytes, enrollment.UserID.String())
	if err != nil {
		log.Printf("🔥 Failed to upload certificate to Cloudinary: %v", err)
		return
	}

	certificate := models.Certificate{
		UserID:         enrollment.UserID,
		CourseID:       enrollment.CourseID,
		CourseTitle:    enrollment.Course.Title,
		CompletionDate: *enrollment.CompletedAt,
		CertificateURL: uploadURL,
	}

	if err := database.DB.Create(&certificate).Error; err != nil {
		log.Printf("🔥 Failed to create certificate record for user %s: %v", enrollment.UserID, err)
	} else {
		log.Printf("✅ Generated certificate for %q, user %s.", enrollment.Course.Title, enrollment.UserID)
	}
}

func generateCertificateHTML(studentName, courseTitle string, completedAt time.Time) (string, error) {
	tmpl, err := template.ParseFiles("templates/certificate.html")
	if err != nil {
		return "", err
	}

	data := struct {
		StudentName    string
		CourseTitle    string
		CompletionDate string
	}{
		StudentName:    studentName,
		CourseTitle:    courseTitle,
		CompletionDate: completedAt.Format("January 2, 2006"),
	}

	var renderedHTML bytes.Buffer
	if err := tmpl.Execute(&renderedHTML, data); err != nil {
		return "", err
	}
	return renderedHTML.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).WithLandscape(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadToCloudinary(fileBytes []byte, userID string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("certificates/%s_%s", userID, uuid.New().String()),
		Folder:       "online_academy_certificates",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
