// Package mail provides sessionguard.MailSender implementations for password
// reset delivery.
//
// [SMTPSender] sends a plain-text message through an SMTP relay. [LogSender]
// writes the reset link to a structured logger and is meant for local
// development where no relay exists.
package mail
