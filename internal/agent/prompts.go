package agent

const mealJSONPrompt = `You are a nutritionist assistant. The user logged a meal of type %q and described it as: %q.

Identify each food item and estimate its nutrition. Respond with a JSON object only, no extra text:
{
  "items": [
    {"name": string, "weight_g": number, "kcal": number, "protein_g": number, "fat_g": number, "carbs_g": number, "sugar_g": number, "fiber_g": number}
  ],
  "total": {"kcal": number, "protein_g": number, "fat_g": number, "carbs_g": number, "sugar_g": number, "fiber_g": number},
  "clarification": string
}
All numbers are integers. "total" must be the sum over "items". Set "clarification" only when you need one concrete detail from the user to improve the estimate, otherwise omit it.`

const updateMealPrompt = `You are a nutritionist assistant. Here is a logged meal as JSON:
%s

The user originally described it as: %q and now adds this comment: %q.

Return the corrected meal as a JSON object with the same shape ("items", "total", optional "clarification") and integer numbers only. Adjust item names, weights and nutrition to match the comment. Keep the item list aligned with what the user actually ate.`

const contextAnalysisPrompt = `You are a nutritionist assistant. The user's daily targets are:
%s

Their intake so far today (before the newest meal) totals:
%s

The newly confirmed meal totals:
%s

Respond with a JSON object only:
{
  "context_comment": string,
  "summary": {"kcal": number, "protein_g": number, "fat_g": number, "carbs_g": number, "sugar_g": number, "fiber_g": number}
}
"context_comment" is one or two short sentences putting the meal in the context of the day. Include "summary" only if the day totals need correcting; omit it or leave it empty otherwise.`

const dayAnalysisPrompt = `You are a nutritionist assistant. The user's daily targets are:
%s

Today they ate these meals:
%s

The day's totals are:
%s

Write three to five short bullet points reviewing the day: what went well, what to adjust tomorrow. Plain text, no JSON.`
