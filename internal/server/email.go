// email.go - SMTP email delivery.
package server

import (
	"fmt"
	"log"
	"net/smtp"

	"minidrive/internal/config"
)

// EmailService sends transactional email. With Enabled false it logs instead
// of sending, which keeps local development free of SMTP setup.
type EmailService struct {
	cfg config.SMTPConfig
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendEmail sends an HTML email with the given subject and body.
func (s *EmailService) SendEmail(to, subject, body string) error {
	if !s.cfg.Enabled {
		log.Printf("msg=email_disabled to=%s subject=%q", to, subject)
		return nil
	}

	if s.cfg.Host == "" || s.cfg.User == "" || s.cfg.Password == "" {
		return fmt.Errorf("smtp not configured")
	}

	message := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.cfg.From, to, subject, body,
	))

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	addr := s.cfg.Host + ":" + s.cfg.Port

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, message); err != nil {
		log.Printf("msg=email_failed to=%s err=%v", to, err)
		return err
	}

	log.Printf("msg=email_sent to=%s subject=%q", to, subject)
	return nil
}

// SendPasswordResetEmail sends the password reset link. The token in the
// link is the plaintext secret; only its hash is stored server-side.
func (s *EmailService) SendPasswordResetEmail(to, token, baseURL string) error {
	resetURL := fmt.Sprintf("%s/reset-password/%s", baseURL, token)

	subject := "Password Reset Request - MiniDrive"
	body := fmt.Sprintf(`
		<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
			<div style="max-width: 600px; margin: 0 auto; padding: 20px; background: #f9f9f9; border-radius: 10px;">
				<h2 style="color: #4F46E5;">Password Reset</h2>
				<p>We received a request to reset your MiniDrive password.</p>
				<p>Click the link below to reset your password:</p>
				<p style="margin: 30px 0;">
					<a href="%s" style="background: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">
						Reset Password
					</a>
				</p>
				<p style="color: #666; font-size: 0.9em;">
					Or copy and paste this link into your browser:<br>
					<code style="background: #eee; padding: 4px 8px; border-radius: 4px;">%s</code>
				</p>
				<p style="color: #666; font-size: 0.85em; margin-top: 30px;">
					This link will expire in 15 minutes.<br>
					If you didn't request a password reset, please ignore this email.
				</p>
			</div>
		</body>
		</html>
	`, resetURL, resetURL)

	return s.SendEmail(to, subject, body)
}
