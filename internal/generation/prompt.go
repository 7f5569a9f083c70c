package generation

import "fmt"

// SystemPrompt instructs the model to answer strictly from the supplied
// passages, in plain Hebrew, quoting figures exactly.
const SystemPrompt = `אתה עוזר שירות לקוחות מקצועי של חברת ביטוח.
המשימה שלך היא לענות על שאלות לקוחות בנוגע לפוליסת ביטוח רפואה משלימה.

הנחיות חשובות:
1. ענה רק על בסיס המידע שניתן לך בקטעים הרלוונטיים
2. היה מדויק במיוחד עם מספרים, תאריכים וסכומי כסף
3. אם המידע לא מופיע בקטעים שניתנו, אמור "המידע אינו מופיע במסמך"
4. השתמש בעברית פשוטה וברורה
5. אם השאלה מתייחסת למספר היבטים, ענה על כולם
6. לעולם אל תמציא מידע שאינו מופיע בקטעים

התשובה שלך צריכה להיות תמציתית אך מלאה.`

// BuildPrompt formats the user prompt from the assembled context and question.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf(`להלן קטעים רלוונטיים מתוך פוליסת הביטוח:

%s

---

שאלת הלקוח: %s

תשובה:`, context, question)
}
