package notify

import (
	"fmt"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
)

// Email bodies are static strings with interpolated fields. Subjects and
// copy are in Spanish, matching the product's audience.

func formatSession(a *appointments.Appointment) string {
	return fmt.Sprintf("%s a las %s", a.Date.Format("02/01/2006"), a.StartTime)
}

func bookingEmail(toName string, a *appointments.Appointment) (subject, body, html string) {
	session := formatSession(a)
	subject = "Tu cita fue reservada"
	body = fmt.Sprintf(`Hola %s,

Tu cita del %s quedó reservada. Para confirmarla, realizá el depósito y subí el comprobante desde la plataforma.

Equipo SmartWell`, toName, session)
	html = fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Cita reservada</h2>
<p>Hola <strong>%s</strong>, tu cita del <strong>%s</strong> quedó reservada.</p>
<p>Para confirmarla, realizá el depósito y subí el comprobante desde la plataforma.</p>
</div>`, toName, session)
	return subject, body, html
}

func paymentApprovedEmail(toName string, a *appointments.Appointment) (subject, body, html string) {
	session := formatSession(a)
	subject = "Pago confirmado: tu cita está agendada"
	body = fmt.Sprintf(`Hola %s,

Tu pago fue verificado y tu cita del %s está confirmada. Te enviaremos recordatorios antes de la sesión.

Equipo SmartWell`, toName, session)
	html = fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #10b981;">Pago confirmado</h2>
<p>Hola <strong>%s</strong>, tu cita del <strong>%s</strong> está confirmada.</p>
</div>`, toName, session)
	return subject, body, html
}

func paymentRejectedEmail(toName string, a *appointments.Appointment, final bool, reason string) (subject, body, html string) {
	session := formatSession(a)
	reasonLine := ""
	if reason != "" {
		reasonLine = fmt.Sprintf("\nMotivo: %s\n", reason)
	}
	if final {
		subject = "Tu cita fue cancelada"
		body = fmt.Sprintf(`Hola %s,

El comprobante de pago de tu cita del %s fue rechazado por segunda vez y la cita quedó cancelada.%s
Si creés que se trata de un error, contactá a soporte.

Equipo SmartWell`, toName, session, reasonLine)
		html = fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #ef4444;">Cita cancelada</h2>
<p>Hola <strong>%s</strong>, el comprobante de tu cita del <strong>%s</strong> fue rechazado por segunda vez y la cita quedó cancelada.</p>
</div>`, toName, session)
		return subject, body, html
	}

	subject = "Revisá tu comprobante de pago"
	body = fmt.Sprintf(`Hola %s,

El comprobante de pago de tu cita del %s fue rechazado.%s
Podés subir un nuevo comprobante desde la plataforma para mantener tu reserva.

Equipo SmartWell`, toName, session, reasonLine)
	html = fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #f59e0b;">Comprobante rechazado</h2>
<p>Hola <strong>%s</strong>, el comprobante de tu cita del <strong>%s</strong> fue rechazado. Podés subir uno nuevo desde la plataforma.</p>
</div>`, toName, session)
	return subject, body, html
}

func cancellationEmail(toName string, a *appointments.Appointment, cancelledBy string) (subject, body, html string) {
	session := formatSession(a)
	subject = "Cita cancelada"
	by := "la otra parte"
	switch cancelledBy {
	case "patient":
		by = "el paciente"
	case "admin":
		by = "el equipo de SmartWell"
	}
	body = fmt.Sprintf(`Hola %s,

La cita del %s fue cancelada por %s.

Equipo SmartWell`, toName, session, by)
	html = fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Cita cancelada</h2>
<p>Hola <strong>%s</strong>, la cita del <strong>%s</strong> fue cancelada por %s.</p>
</div>`, toName, session, by)
	return subject, body, html
}

func rescheduleEmail(toName string, a *appointments.Appointment) (subject, body, html string) {
	session := formatSession(a)
	subject = "Cita reprogramada"
	body = fmt.Sprintf(`Hola %s,

Tu cita fue reprogramada para el %s.

Equipo SmartWell`, toName, session)
	html = fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Cita reprogramada</h2>
<p>Hola <strong>%s</strong>, tu cita fue reprogramada para el <strong>%s</strong>.</p>
</div>`, toName, session)
	return subject, body, html
}

func reminderEmail(toName string, a *appointments.Appointment, band appointments.ReminderBand) (subject, body, html string) {
	session := formatSession(a)
	when := "mañana"
	if band == appointments.Band1h {
		when = "en una hora"
	}
	subject = fmt.Sprintf("Recordatorio: tu sesión es %s", when)
	body = fmt.Sprintf(`Hola %s,

Te recordamos tu sesión del %s (%d minutos). Ingresá a la sala desde la plataforma unos minutos antes.

Equipo SmartWell`, toName, session, a.DurationMinutes)
	html = fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Recordatorio de sesión</h2>
<p>Hola <strong>%s</strong>, tu sesión es el <strong>%s</strong> (%d minutos).</p>
<p>Ingresá a la sala desde la plataforma unos minutos antes.</p>
</div>`, toName, session, a.DurationMinutes)
	return subject, body, html
}
