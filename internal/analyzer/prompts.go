package analyzer

import (
	"fmt"

	"github.com/BerylCAtieno/legalease-api/internal/models"
)

const Disclaimer = "**Disclaimer**: This is informational analysis only and not legal advice. For legal guidance specific to your situation, please consult a qualified attorney."

func languageInstruction(lang models.Language) string {
	if lang == models.LanguageHindi {
		return "Please respond in Hindi (हिंदी में उत्तर दें)"
	}
	return "Please respond in English"
}

func summaryPrompt(text string, lang models.Language) string {
	return fmt.Sprintf(`You are a legal expert helping ordinary citizens understand legal documents.
%s

Analyze this legal document and provide:

1. DOCUMENT TYPE: What kind of legal document this is
2. KEY PARTIES: Who are the main parties involved
3. MAIN PURPOSE: What is the primary purpose of this document
4. KEY TERMS: List the most important terms, conditions, and obligations
5. IMPORTANT DATES: Any critical dates, deadlines, or time periods
6. FINANCIAL TERMS: Any money, fees, penalties, or financial obligations
7. RIGHTS & OBLIGATIONS: What each party can do and must do
8. TERMINATION CONDITIONS: How and when the agreement can end
9. DISPUTE RESOLUTION: How conflicts will be resolved

Format your response as clear bullet points under each section.
Use simple, everyday language that a non-lawyer can understand.

Document text:
%s

Please provide a comprehensive but concise analysis.`, languageInstruction(lang), text)
}

func riskPrompt(text string, lang models.Language) string {
	return fmt.Sprintf(`You are a legal expert specializing in risk analysis. Analyze this legal document and identify potential risks and red flags.
%s

Please provide a comprehensive risk analysis with:

1. HIGH-RISK CLAUSES: Identify clauses that pose significant legal or financial risks
2. FINANCIAL RISKS: Any hidden costs, penalties, or unfavorable financial terms
3. UNFAIR TERMS: One-sided obligations or terms that heavily favor one party
4. UNCLEAR LANGUAGE: Vague or ambiguous terms that could cause disputes
5. MISSING PROTECTIONS: Important protections or rights that should be included
6. TERMINATION RISKS: Unfavorable termination conditions or penalties
7. LIABILITY CONCERNS: Excessive liability or indemnification requirements
8. COMPLIANCE ISSUES: Terms that might conflict with laws or regulations

For each risk, indicate:
- Risk Level: HIGH, MEDIUM, or LOW
- Brief explanation of why it's risky
- Potential consequences

Format as clear bullet points under each category.
Use simple language that non-lawyers can understand.

Document text:
%s

Provide a thorough but concise risk analysis.`, languageInstruction(lang), text)
}

func answerPrompt(question, relevant, context string, lang models.Language) string {
	return fmt.Sprintf(`You are a legal expert helping people understand legal documents. A user has asked a specific question about their legal document.
%s

User's Question: %q

Based on this legal document, please provide a comprehensive answer that:

1. DIRECT ANSWER: Answer the specific question clearly and directly
2. RELEVANT CLAUSES: Quote and explain the specific clauses that relate to the question
3. IMPLICATIONS: Explain what this means in practical terms
4. IMPORTANT DETAILS: Highlight any important dates, conditions, or requirements
5. POTENTIAL ISSUES: Point out any potential problems or things to watch out for
6. NEXT STEPS: Suggest what the user should do or consider

Use simple, clear language that a non-lawyer can understand.
Always include relevant quotes from the document to support your answer.

Relevant document sections:
%s

Full document context (if needed):
%s

**Important**: End your response with this disclaimer:
"%s"`, languageInstruction(lang), question, relevant, context, Disclaimer)
}

func clausePrompt(clause string, lang models.Language) string {
	return fmt.Sprintf(`You are a legal expert who specializes in explaining complex legal language in simple terms.
%s

Please explain this legal clause in plain language that anyone can understand:

%q

Provide a comprehensive explanation that includes:

1. SIMPLE EXPLANATION: What does this clause mean in everyday language?
2. KEY OBLIGATIONS: What does each party have to do because of this clause?
3. RIGHTS GRANTED: What rights or protections does this clause provide?
4. CONSEQUENCES: What happens if someone doesn't follow this clause?
5. PRACTICAL IMPACT: How does this affect the people involved in real life?
6. POTENTIAL RISKS: Are there any risks or downsides to be aware of?
7. IMPORTANT NOTES: Any critical details, exceptions, or conditions?

Use simple words and avoid legal jargon. Explain any technical terms you must use.
Break down complex sentences into easier parts.
Use examples if helpful to illustrate the meaning.

Format your response clearly with headings and bullet points where appropriate.`, languageInstruction(lang), clause)
}
