// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

// ExtractionPrompt asks for PlantUML with no surrounding fences.
const ExtractionPrompt = "Convert this UML class diagram to PlantUML notation. " +
	"Provide only the raw PlantUML notation (no markdown code blocks)."

// ValidationPrompt asks for a single yes/no word.
const ValidationPrompt = `Look at the image provided and answer with ONLY a single word - "yes" or "no":
Does this image contain a UML class diagram?

A UML class diagram typically contains:
- Rectangles representing classes with class names at the top
- Sections for attributes/fields and methods
- Connector lines showing relationships between classes (inheritance, association, etc.)
- May include access modifiers (+, -, #)

Answer only "yes" or "no".`
