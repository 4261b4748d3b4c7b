package service

const (
	PNG  = "png"
	JPEG = "jpeg"
	JPG  = "jpg"
)

// SupportedFormats lists the upload extensions the service accepts.
var SupportedFormats = []string{JPG, JPEG, PNG}

const (
	systemPrompt = `You are a specialized receipt parser. Extract all item details from receipts including item names, quantities, individual prices, and the total amount. Format your response as a valid JSON object with the following structure: {"items": [{"name": string, "quantity": number, "price": number}], "total": number, "currency": string, "date": string, "merchant": string}`

	userPrompt = "Parse this receipt image and extract all item details (name, quantity, price), the total amount, currency, date, and merchant name. Return ONLY a valid JSON object with no additional text."
)
