package interview

// Canned Spanish texts used when no generated variant is available. The
// study-site and contact details mirror the material sent to participants.

const welcomeMenu = `¡Hola! Bienvenido/a a EPIMex 👋

🔬 *EPIMex* es un estudio de investigación que busca entender mejor las causas genéticas y ambientales de la psicosis de inicio temprano en población mexicana.

*¿Qué puedo hacer por ti?*

1️⃣ Conocer más sobre el estudio
2️⃣ Iniciar proceso de participación
3️⃣ Resolver dudas específicas
4️⃣ Hablar con un especialista

Escribe el número de tu opción o cuéntame qué te interesa saber.`

const contactInfo = `📞 *Contacto EPIMex*

*Sedes:*
📍 *Benito Juárez:* Grupo Médico Carracci, Carracci 107, Col. Extremadura Insurgentes
📱 WhatsApp: 55 3206 7976

📍 *Tlalpan:* Hospital Psiquiátrico Infantil Dr. Juan N. Navarro, Av. San Fernando 86
📱 WhatsApp: 55 7871 0328

*General:*
📧 Email: EPIMex@gmc.org.mx
🌐 Web: www.epimex.net`

const schedulingAccepted = `¡Perfecto! Para agendar tu cita necesitamos coordinar con nuestro equipo.

*Nuestras sedes:*
📍 *Benito Juárez:* Grupo Médico Carracci
📍 *Tlalpan:* Hospital Psiquiátrico Infantil Dr. Juan N. Navarro

*Contacto directo:*
📞 Benito Juárez: 55 3206 7976
📞 Tlalpan: 55 7871 0328
📧 Email: EPIMex@gmc.org.mx

Nuestro equipo se pondrá en contacto contigo en las próximas 24-48 horas para coordinar fecha y hora.

¡Gracias por tu participación en EPIMex! 🔬`

const schedulingDeclined = "Entiendo. Si cambias de opinión, puedes contactarnos cuando gustes. ¡Gracias por tu interés en EPIMex!"

const schedulingOfferPrompt = "¿Te gustaría agendar tu cita ahora? Responde 'sí' para continuar."

const ineligibleClosing = "Si tienes preguntas, puedes contactarnos en EPIMex@gmc.org.mx o visitar www.epimex.net"

const apologyReply = "Disculpa, hubo un error técnico. Por favor intenta de nuevo o contacta a nuestro equipo de soporte."

const storageWarning = "⚠️ Tuvimos un problema guardando parte de tu información. Continuemos, pero es posible que nuestro equipo te la pida de nuevo."

const askName = "¡Excelente! Para comenzar necesito algunos datos. ¿Cuál es tu nombre completo?"

const askAge = "¿Cuál es tu edad?"

const askAgeAgain = "La edad debe estar entre 10 y 75 años para participar. ¿Podrías confirmar tu edad?"

const askSex = "¿Cuál es tu sexo biológico asignado al nacer? (masculino/femenino/otro)"

const askEmail = "¿Cuál es tu correo electrónico?"

const askEmailAgain = "Por favor proporciona un correo electrónico válido."

const askCity = "¿En qué ciudad vives?"

func mainMenu(name string) string {
	greeting := "¡Hola! Bienvenido/a a EPIMex"
	if name != "" {
		greeting = "¡Hola de nuevo " + name + "!"
	}
	return greeting + ` 👋

🔬 *EPIMex* - Estudio de investigación sobre psicosis de inicio temprano

*¿En qué puedo ayudarte?*

1️⃣ Información sobre el estudio
2️⃣ Proceso de participación
3️⃣ Requisitos para participar
4️⃣ Sedes y contacto
5️⃣ Preguntas frecuentes
6️⃣ Hablar con especialista

Escribe el número de tu opción.`
}

func eligibleFallback(name string) string {
	return "¡Gracias " + name + "! Has completado el tamizaje inicial para EPIMex. Tu información será revisada por nuestro equipo y te contactaremos pronto para coordinar los siguientes pasos. ¡Agradecemos mucho tu interés en contribuir a esta importante investigación!"
}

func ineligibleFallback(name string) string {
	return "Gracias " + name + " por tu tiempo e interés en EPIMex. Aunque en este momento no cumples todos los criterios para participar, valoramos mucho tu disposición a contribuir a la investigación en salud mental. Si tienes preguntas, no dudes en contactarnos."
}

const followUpIntro = "Gracias por compartir eso conmigo. Me gustaría conocer un poco más sobre esas experiencias. Tus respuestas son confidenciales y muy valiosas para el estudio."

const followUpTransition = "Gracias por tu confianza al responder. Ahora quisiera preguntarte sobre otro tipo de experiencias."

const followUpAck = "Agradezco que compartas esta información conmigo. Es importante para el estudio."

const screeningIntro = "¡Listo! Tus datos quedaron registrados. Ahora haremos 11 preguntas breves para saber si puedes participar en el estudio."
